package shared

// Workspace-wide permissions.
const (
	PermWorkspaceAdmin = "workspace.admin"
)

// Circle permissions.
const (
	PermCircleView        = "circle.view"
	PermCircleCreate      = "circle.create"
	PermCircleEdit        = "circle.edit"
	PermCircleDelete      = "circle.delete"
	PermCircleHistoryView = "circle.history.view"
)

// Role and permission management.
const (
	PermRoleView       = "role.view"
	PermRoleCreate     = "role.create"
	PermRoleAssign     = "role.assign"
	PermPermissionView = "permission.view"
)

// Meetings, flashcards and policies.
const (
	PermMeetingView   = "meeting.view"
	PermMeetingCreate = "meeting.create"
	PermMeetingEdit   = "meeting.edit"

	PermFlashcardView = "flashcard.view"
	PermFlashcardEdit = "flashcard.edit"

	PermPolicyView = "policy.view"
	PermPolicyEdit = "policy.edit"
)

// CoreScopes lists every permission known to the platform.
func CoreScopes() []string {
	return []string{
		PermWorkspaceAdmin,
		PermCircleView,
		PermCircleCreate,
		PermCircleEdit,
		PermCircleDelete,
		PermCircleHistoryView,
		PermRoleView,
		PermRoleCreate,
		PermRoleAssign,
		PermPermissionView,
		PermMeetingView,
		PermMeetingCreate,
		PermMeetingEdit,
		PermFlashcardView,
		PermFlashcardEdit,
		PermPolicyView,
		PermPolicyEdit,
	}
}

package circles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

// maxDepth bounds ancestor walks so corrupted data cannot loop forever.
const maxDepth = 256

// Authorizer answers permission checks for an actor.
type Authorizer interface {
	CanPerform(ctx context.Context, userID, action, scope string) (bool, error)
}

// Service mutates circles and records their history. Every mutation
// persists the circle before appending the version record and undoes the
// write when the record cannot be appended.
type Service struct {
	docs     docstore.Store
	recorder *Recorder
	authz    Authorizer
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(docs docstore.Store, recorder *Recorder, authz Authorizer) *Service {
	return &Service{docs: docs, recorder: recorder, authz: authz, now: time.Now}
}

// CreateInput describes a new circle.
type CreateInput struct {
	WorkspaceID    string
	Name           string
	Purpose        string
	ParentCircleID string
}

// UpdateInput carries optional field changes.
type UpdateInput struct {
	Name    *string
	Purpose *string
}

// Get fetches a circle by id.
func (s *Service) Get(ctx context.Context, id string) (Circle, error) {
	rec, err := s.docs.Get(ctx, docstore.Circles, id)
	if err != nil {
		return Circle{}, fmt.Errorf("circles: get: %w", err)
	}
	return docstore.Decode[Circle](rec)
}

// ListByWorkspace returns every circle in the workspace, archived included.
func (s *Service) ListByWorkspace(ctx context.Context, workspaceID string) ([]Circle, error) {
	recs, err := s.docs.Query(ctx, docstore.Circles, "by_workspace", workspaceID)
	if err != nil {
		return nil, fmt.Errorf("circles: list: %w", err)
	}
	return docstore.DecodeAll[Circle](recs)
}

// Children returns the direct children of a circle.
func (s *Service) Children(ctx context.Context, parentID string) ([]Circle, error) {
	recs, err := s.docs.Query(ctx, docstore.Circles, "by_parent", parentID)
	if err != nil {
		return nil, fmt.Errorf("circles: children: %w", err)
	}
	return docstore.DecodeAll[Circle](recs)
}

// Create inserts a circle at version 1. Root circles require an unscoped
// circle.create grant; child circles accept one scoped to the parent.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (Circle, error) {
	name := strings.TrimSpace(in.Name)
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if name == "" || workspaceID == "" {
		return Circle{}, fmt.Errorf("%w: workspace and name are required", shared.ErrValidation)
	}
	parentID := strings.TrimSpace(in.ParentCircleID)
	if err := s.authorize(ctx, actorID, shared.PermCircleCreate, parentID); err != nil {
		return Circle{}, err
	}
	if parentID != "" {
		parent, err := s.Get(ctx, parentID)
		if err != nil {
			return Circle{}, err
		}
		if err := checkParent(parent, workspaceID); err != nil {
			return Circle{}, err
		}
	}

	now := s.now().UTC()
	circle := Circle{
		WorkspaceID:    workspaceID,
		Name:           name,
		Purpose:        strings.TrimSpace(in.Purpose),
		ParentCircleID: parentID,
		Version:        1,
		UpdatedAt:      now,
	}
	rec, err := s.docs.Insert(ctx, docstore.Circles, circle)
	if err != nil {
		return Circle{}, fmt.Errorf("circles: create: %w", err)
	}
	created, err := docstore.Decode[Circle](rec)
	if err != nil {
		return Circle{}, err
	}
	if err := s.recorder.RecordCreateHistory(ctx, EntityCircle, &created); err != nil {
		if derr := s.docs.Delete(ctx, docstore.Circles, created.ID); derr != nil {
			return Circle{}, errors.Join(err, fmt.Errorf("circles: undo create: %w", derr))
		}
		return Circle{}, err
	}
	return created, nil
}

// Update renames a circle or changes its purpose.
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (Circle, error) {
	if err := s.authorize(ctx, actorID, shared.PermCircleEdit, id); err != nil {
		return Circle{}, err
	}
	circle, err := s.active(ctx, id)
	if err != nil {
		return Circle{}, err
	}
	prior := circle
	changed := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Circle{}, fmt.Errorf("%w: name cannot be empty", shared.ErrValidation)
		}
		changed = changed || name != circle.Name
		circle.Name = name
	}
	if in.Purpose != nil {
		purpose := strings.TrimSpace(*in.Purpose)
		changed = changed || purpose != circle.Purpose
		circle.Purpose = purpose
	}
	if !changed {
		return circle, nil
	}
	return s.commit(ctx, prior, circle, ChangeUpdate)
}

// Move re-parents a circle. An empty parent makes it a root. The actor
// needs circle.edit on the circle and circle.create at the destination,
// the same grant Create asks for. Moving a circle beneath itself or one of
// its descendants is rejected.
func (s *Service) Move(ctx context.Context, actorID, id, newParentID string) (Circle, error) {
	newParentID = strings.TrimSpace(newParentID)
	if err := s.authorize(ctx, actorID, shared.PermCircleEdit, id); err != nil {
		return Circle{}, err
	}
	if err := s.authorize(ctx, actorID, shared.PermCircleCreate, newParentID); err != nil {
		return Circle{}, err
	}
	circle, err := s.active(ctx, id)
	if err != nil {
		return Circle{}, err
	}
	if circle.ParentCircleID == newParentID {
		return circle, nil
	}
	if newParentID != "" {
		parent, err := s.Get(ctx, newParentID)
		if err != nil {
			return Circle{}, err
		}
		if err := checkParent(parent, circle.WorkspaceID); err != nil {
			return Circle{}, err
		}
		if err := s.checkNoCycle(ctx, id, parent); err != nil {
			return Circle{}, err
		}
	}
	next := circle
	next.ParentCircleID = newParentID
	return s.commit(ctx, circle, next, ChangeMove)
}

// Archive marks a circle archived. Circles with active children cannot be archived.
func (s *Service) Archive(ctx context.Context, actorID, id string) (Circle, error) {
	if err := s.authorize(ctx, actorID, shared.PermCircleDelete, id); err != nil {
		return Circle{}, err
	}
	circle, err := s.active(ctx, id)
	if err != nil {
		return Circle{}, err
	}
	children, err := s.Children(ctx, id)
	if err != nil {
		return Circle{}, err
	}
	for _, child := range children {
		if !child.Archived {
			return Circle{}, fmt.Errorf("%w: circle %s has active child %s", shared.ErrConflict, id, child.ID)
		}
	}
	next := circle
	next.Archived = true
	return s.commit(ctx, circle, next, ChangeArchive)
}

// History lists the version records of a circle.
func (s *Service) History(ctx context.Context, actorID, id string) ([]VersionRecord, error) {
	if err := s.authorize(ctx, actorID, shared.PermCircleHistoryView, id); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.ListHistory(ctx, id)
}

// commit persists next over prior. When the version record cannot be
// written the stored body is put back to prior.
func (s *Service) commit(ctx context.Context, prior, next Circle, change ChangeKind) (Circle, error) {
	next.Version = prior.Version + 1
	next.UpdatedAt = s.now().UTC()
	if err := s.docs.Replace(ctx, docstore.Circles, next.ID, next); err != nil {
		return Circle{}, fmt.Errorf("circles: %s: %w", change, err)
	}
	if err := s.recorder.RecordHistory(ctx, EntityCircle, change, &next); err != nil {
		if rerr := s.docs.Replace(ctx, docstore.Circles, prior.ID, prior); rerr != nil {
			return Circle{}, errors.Join(err, fmt.Errorf("circles: undo %s: %w", change, rerr))
		}
		return Circle{}, err
	}
	return next, nil
}

func (s *Service) active(ctx context.Context, id string) (Circle, error) {
	circle, err := s.Get(ctx, id)
	if err != nil {
		return Circle{}, err
	}
	if circle.Archived {
		return Circle{}, fmt.Errorf("%w: circle %s is archived", shared.ErrConflict, id)
	}
	return circle, nil
}

func (s *Service) authorize(ctx context.Context, actorID, action, scope string) error {
	allowed, err := s.authz.CanPerform(ctx, actorID, action, scope)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", shared.ErrForbidden, action)
	}
	return nil
}

// checkNoCycle walks from the prospective parent to the root and fails if
// the moving circle is encountered.
func (s *Service) checkNoCycle(ctx context.Context, movingID string, parent Circle) error {
	current := parent
	for depth := 0; depth < maxDepth; depth++ {
		if current.ID == movingID {
			return fmt.Errorf("%w: %w: moving circle %s under %s would create a cycle", shared.ErrInvariantViolation, shared.ErrConflict, movingID, parent.ID)
		}
		if current.ParentCircleID == "" {
			return nil
		}
		next, err := s.Get(ctx, current.ParentCircleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: circle %s has missing parent %s", shared.ErrInvariantViolation, current.ID, current.ParentCircleID)
			}
			return err
		}
		current = next
	}
	return fmt.Errorf("%w: circle tree deeper than %d", shared.ErrInvariantViolation, maxDepth)
}

func checkParent(parent Circle, workspaceID string) error {
	if parent.WorkspaceID != workspaceID {
		return fmt.Errorf("%w: parent circle belongs to another workspace", shared.ErrValidation)
	}
	if parent.Archived {
		return fmt.Errorf("%w: parent circle is archived", shared.ErrConflict)
	}
	return nil
}

// Package policies exposes workspace governance policies.
package policies

import (
	"context"
	"fmt"
	"time"

	"github.com/synergyos/synergyos/internal/platform/docstore"
)

// FeatureFlag gates the policy surface.
const FeatureFlag = "policies"

// Policy is a governance document. Policies are read-only here.
type Policy struct {
	ID          string    `json:"_id,omitempty"`
	CreatedAt   time.Time `json:"_creationTime"`
	WorkspaceID string    `json:"workspaceId"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
}

// SessionResolver maps a session id to a user id.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (string, error)
}

// Flags reports whether a named feature is enabled.
type Flags interface {
	Enabled(name string) bool
}

// Service lists policies for authenticated callers.
type Service struct {
	sessions SessionResolver
	docs     docstore.Store
	flags    Flags
}

// NewService constructs a Service.
func NewService(sessions SessionResolver, docs docstore.Store, flags Flags) *Service {
	return &Service{sessions: sessions, docs: docs, flags: flags}
}

// ListPolicies returns every policy visible to the session. The session is
// resolved first; an invalid session never reaches the store. With the
// feature disabled the result is empty.
func (s *Service) ListPolicies(ctx context.Context, sessionID string) ([]Policy, error) {
	return s.list(ctx, sessionID, "")
}

// ListWorkspacePolicies narrows ListPolicies to one workspace.
func (s *Service) ListWorkspacePolicies(ctx context.Context, sessionID, workspaceID string) ([]Policy, error) {
	return s.list(ctx, sessionID, workspaceID)
}

func (s *Service) list(ctx context.Context, sessionID, workspaceID string) ([]Policy, error) {
	if _, err := s.sessions.Resolve(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.flags != nil && !s.flags.Enabled(FeatureFlag) {
		return []Policy{}, nil
	}
	var (
		recs []docstore.Record
		err  error
	)
	if workspaceID == "" {
		recs, err = s.docs.List(ctx, docstore.Policies)
	} else {
		recs, err = s.docs.Query(ctx, docstore.Policies, "by_workspace", workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("policies: list: %w", err)
	}
	return docstore.DecodeAll[Policy](recs)
}

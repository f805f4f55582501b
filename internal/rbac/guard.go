package rbac

import "context"

// SessionResolver maps a session id to a user id.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (string, error)
}

// Guard combines session resolution with the Authority. The session is
// always resolved before the role store is touched.
type Guard struct {
	sessions  SessionResolver
	authority *Authority
}

// NewGuard constructs a Guard.
func NewGuard(sessions SessionResolver, authority *Authority) *Guard {
	return &Guard{sessions: sessions, authority: authority}
}

// CanPerformForSession resolves the session and checks action within scope.
func (g *Guard) CanPerformForSession(ctx context.Context, sessionID, action, scope string) (bool, error) {
	userID, err := g.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return g.authority.CanPerform(ctx, userID, action, scope)
}

// DecideForSession is the batch form used by the permission gate.
func (g *Guard) DecideForSession(ctx context.Context, sessionID, scope string, actions ...string) (map[string]bool, error) {
	userID, err := g.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return g.authority.Decide(ctx, userID, scope, actions...)
}

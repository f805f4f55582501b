// Package circles manages the circle tree and its append-only version history.
package circles

import (
	"encoding/json"
	"time"
)

// EntityKind names the type of a versioned entity.
type EntityKind string

// EntityCircle is the only versioned entity kind today.
const EntityCircle EntityKind = "circle"

// ChangeKind classifies a history record.
type ChangeKind string

// Change kinds.
const (
	ChangeCreate  ChangeKind = "create"
	ChangeUpdate  ChangeKind = "update"
	ChangeMove    ChangeKind = "move"
	ChangeArchive ChangeKind = "archive"
)

// Circle is a node in a workspace's organisational tree.
type Circle struct {
	ID             string    `json:"_id,omitempty"`
	CreatedAt      time.Time `json:"_creationTime"`
	WorkspaceID    string    `json:"workspaceId"`
	Name           string    `json:"name"`
	Purpose        string    `json:"purpose"`
	ParentCircleID string    `json:"parentCircleId"`
	Version        int       `json:"version"`
	Archived       bool      `json:"archived"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// VersionKey identifies the circle and version a history record belongs to.
func (c *Circle) VersionKey() (string, int) {
	return c.ID, c.Version
}

// VersionRecord is an immutable snapshot of an entity at one version.
type VersionRecord struct {
	ID          string          `json:"_id,omitempty"`
	CircleID    string          `json:"circleId"`
	EntityKind  EntityKind      `json:"entityKind"`
	ChangeKind  ChangeKind      `json:"changeKind"`
	Version     int             `json:"version"`
	Snapshot    json.RawMessage `json:"snapshot"`
	ActorUserID string          `json:"actorUserId"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// Versioned is implemented by entities whose changes are recorded.
type Versioned interface {
	VersionKey() (circleID string, version int)
}

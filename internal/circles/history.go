package circles

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

// Recorder appends version records. Records are never updated or deleted.
type Recorder struct {
	docs docstore.Store
	now  func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(docs docstore.Store) *Recorder {
	return &Recorder{docs: docs, now: time.Now}
}

// RecordCreateHistory records the initial version of entity. A nil entity,
// including a typed nil pointer, records nothing.
func (r *Recorder) RecordCreateHistory(ctx context.Context, kind EntityKind, entity Versioned) error {
	return r.RecordHistory(ctx, kind, ChangeCreate, entity)
}

// RecordHistory appends a snapshot of entity for the given change.
func (r *Recorder) RecordHistory(ctx context.Context, kind EntityKind, change ChangeKind, entity Versioned) error {
	if isNil(entity) {
		return nil
	}
	circleID, version := entity.VersionKey()
	if circleID == "" {
		return fmt.Errorf("%w: history for unsaved %s", shared.ErrInvariantViolation, kind)
	}
	snapshot, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("circles: snapshot %s: %w", circleID, err)
	}
	actor, _ := shared.UserFromContext(ctx)
	record := VersionRecord{
		CircleID:    circleID,
		EntityKind:  kind,
		ChangeKind:  change,
		Version:     version,
		Snapshot:    snapshot,
		ActorUserID: actor,
		RecordedAt:  r.now().UTC(),
	}
	if _, err := r.docs.Insert(ctx, docstore.CircleVersions, record); err != nil {
		return fmt.Errorf("circles: record history %s v%d: %w", circleID, version, err)
	}
	return nil
}

// ListHistory returns every record for a circle ordered by version.
func (r *Recorder) ListHistory(ctx context.Context, circleID string) ([]VersionRecord, error) {
	recs, err := r.docs.Query(ctx, docstore.CircleVersions, "by_circle", circleID)
	if err != nil {
		return nil, fmt.Errorf("circles: list history: %w", err)
	}
	records, err := docstore.DecodeAll[VersionRecord](recs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Version < records[j].Version })
	return records, nil
}

func isNil(entity Versioned) bool {
	if entity == nil {
		return true
	}
	v := reflect.ValueOf(entity)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

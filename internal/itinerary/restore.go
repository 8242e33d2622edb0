package itinerary

import (
	"context"
	"fmt"

	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/trip"
)

// ValidateSnapshot decodes a stored or imported itinerary value and checks
// that its days could serve as the live schedule.
func ValidateSnapshot(raw string) (*Snapshot, error) {
	snap, err := DecodeSnapshot(raw)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid itinerary snapshot: %v", err))
	}
	if problems := trip.LintDays(snap.Days); len(problems) > 0 {
		e := errors.NewInvalidRequest(fmt.Sprintf("invalid itinerary snapshot: %v", problems))
		e.Details = map[string]any{"problems": problems}
		return nil, e
	}
	return snap, nil
}

// Validate reports whether raw would be accepted by Restore.
func (s *Store) Validate(raw string) error {
	_, err := ValidateSnapshot(raw)
	return err
}

// Restore replaces the live schedule with an imported snapshot. Each day is
// re-sorted by time, the result is reconciled with the template like a
// stored snapshot would be, and it is written through the gateway.
func (s *Store) Restore(ctx context.Context, raw string) error {
	snap, err := ValidateSnapshot(raw)
	if err != nil {
		return err
	}
	for i := range snap.Days {
		sortByTime(snap.Days[i].Items)
	}
	s.install(Reconcile(s.tmpl, snap, s.mode))
	return s.persist(ctx)
}

func duplicateItemID(days []trip.Day) (int64, bool) {
	seen := make(map[int64]bool)
	for _, d := range days {
		for _, it := range d.Items {
			if seen[it.ID] {
				return it.ID, true
			}
			seen[it.ID] = true
		}
	}
	return 0, false
}

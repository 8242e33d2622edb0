package itinerary

import (
	"context"
	"slices"
	"strings"

	"github.com/hpungsan/tripkit/internal/trip"
)

// Every mutation below is a silent no-op when the referenced day or stop does
// not exist. The returned error only ever reports a failed write; the
// in-memory change stands either way.

// CheckIn stamps the current local "HH:MM" on every stop with itemID.
func (s *Store) CheckIn(ctx context.Context, itemID int64, kind trip.CheckInKind) error {
	stamp := trip.FormatClock(s.now())
	return s.setCheckIn(ctx, itemID, kind, &stamp)
}

// UpdateCheckInTime stores value as the check-in time. value is not
// validated here; surfaces check it with trip.ValidClock.
func (s *Store) UpdateCheckInTime(ctx context.Context, itemID int64, value string, kind trip.CheckInKind) error {
	return s.setCheckIn(ctx, itemID, kind, &value)
}

// ClearCheckIn removes a recorded check-in.
func (s *Store) ClearCheckIn(ctx context.Context, itemID int64, kind trip.CheckInKind) error {
	return s.setCheckIn(ctx, itemID, kind, nil)
}

func (s *Store) setCheckIn(ctx context.Context, itemID int64, kind trip.CheckInKind, value *string) error {
	matched := false
	for di := range s.days {
		for ii := range s.days[di].Items {
			it := &s.days[di].Items[ii]
			if it.ID != itemID {
				continue
			}
			it.SetCheckIn(kind, copyString(value))
			matched = true
		}
	}
	if !matched {
		return nil
	}
	return s.persist(ctx)
}

// ItemFields are the caller-supplied fields of a new stop.
type ItemFields struct {
	Time     string
	Location string
	Desc     string
	Type     trip.Category
	Details  *trip.Details
}

// AddItem appends a stop to the day with dayID, keeps the day ordered by time,
// and returns the new stop's id. It returns 0 when no day matches.
func (s *Store) AddItem(ctx context.Context, dayID int, fields ItemFields) (int64, error) {
	day := s.findDay(dayID)
	if day == nil {
		return 0, nil
	}

	item := trip.Item{
		ID:       s.seq.Next(),
		Time:     fields.Time,
		Location: fields.Location,
		Desc:     fields.Desc,
		Type:     fields.Type,
	}
	if fields.Details != nil {
		item.Details = fields.Details.Clone()
	}

	day.Items = append(day.Items, item)
	sortByTime(day.Items)
	return item.ID, s.persist(ctx)
}

// ItemPatch lists the fields to change on a stop (nil = don't change).
// Identity and check-ins are not patchable.
type ItemPatch struct {
	Time     *string
	Location *string
	Desc     *string
	Type     *trip.Category
	Details  *trip.Details
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Time == nil && p.Location == nil && p.Desc == nil && p.Type == nil && p.Details == nil
}

// UpdateItem merges patch into the first stop with itemID and re-sorts its day.
func (s *Store) UpdateItem(ctx context.Context, itemID int64, patch ItemPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	di, ii := s.findItem(itemID)
	if di < 0 {
		return nil
	}

	it := &s.days[di].Items[ii]
	if patch.Time != nil {
		it.Time = *patch.Time
	}
	if patch.Location != nil {
		it.Location = *patch.Location
	}
	if patch.Desc != nil {
		it.Desc = *patch.Desc
	}
	if patch.Type != nil {
		it.Type = *patch.Type
	}
	if patch.Details != nil {
		it.Details = patch.Details.Clone()
	}

	sortByTime(s.days[di].Items)
	return s.persist(ctx)
}

// DeleteItem removes the first stop with itemID.
func (s *Store) DeleteItem(ctx context.Context, itemID int64) error {
	di, ii := s.findItem(itemID)
	if di < 0 {
		return nil
	}
	s.days[di].Items = slices.Delete(s.days[di].Items, ii, ii+1)
	return s.persist(ctx)
}

// sortByTime orders stops by their fixed-width "HH:MM" time. Equal times
// keep their relative order.
func sortByTime(items []trip.Item) {
	slices.SortStableFunc(items, func(a, b trip.Item) int {
		return strings.Compare(a.Time, b.Time)
	})
}

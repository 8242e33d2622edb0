package itinerary

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/trip"
)

var fixedNow = time.Date(2026, 1, 7, 8, 41, 12, 0, time.Local)

func newTestKV(t *testing.T) *db.KV {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return db.NewKV(database)
}

func newTestStore(t *testing.T, kv db.Store) *Store {
	t.Helper()
	tmpl, err := trip.Default()
	require.NoError(t, err)

	s := New(tmpl, kv, Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, s.Load(context.Background()))
	return s
}

// reload builds a second Store over the same storage, as a new session would.
func reload(t *testing.T, kv db.Store) *Store {
	t.Helper()
	return newTestStore(t, kv)
}

func allCheckIns(days []trip.Day) map[int64][2]*string {
	out := make(map[int64][2]*string)
	for _, d := range days {
		for _, it := range d.Items {
			out[it.ID] = [2]*string{it.ActualArrival, it.ActualDeparture}
		}
	}
	return out
}

func TestStore_LoadFresh(t *testing.T) {
	s := newTestStore(t, newTestKV(t))

	days := s.Schedule()
	require.Len(t, days, 5)
	assert.Equal(t, "2026-01-07", days[0].Date)
	assert.Equal(t, "2026-01-11", days[4].Date)
	assert.Equal(t, []string{"2026-01-07", "2026-01-08", "2026-01-09", "2026-01-10", "2026-01-11"}, s.Dates())
	assert.Equal(t, Progress{Total: 16}, s.Progress())
}

func TestStore_CheckInRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	require.NoError(t, s.CheckIn(ctx, 101, trip.Arrival))

	ref, ok := s.Item(101)
	require.True(t, ok)
	require.NotNil(t, ref.Item.ActualArrival)
	assert.Equal(t, "08:41", *ref.Item.ActualArrival)
	assert.Nil(t, ref.Item.ActualDeparture)

	again := reload(t, kv)
	ref, ok = again.Item(101)
	require.True(t, ok)
	require.NotNil(t, ref.Item.ActualArrival)
	assert.Equal(t, "08:41", *ref.Item.ActualArrival)
	assert.Equal(t, 1, again.Progress().Arrived)
}

func TestStore_CheckInDeparture(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestKV(t))

	require.NoError(t, s.CheckIn(ctx, 403, trip.Departure))

	ref, _ := s.Item(403)
	assert.Nil(t, ref.Item.ActualArrival)
	assert.Equal(t, "08:41", *ref.Item.ActualDeparture)
	assert.Equal(t, 4, ref.DayID)
	assert.Equal(t, "2026-01-10", ref.Date)
}

func TestStore_UpdateAndClearCheckInTime(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	require.NoError(t, s.CheckIn(ctx, 202, trip.Arrival))
	require.NoError(t, s.UpdateCheckInTime(ctx, 202, "12:40", trip.Arrival))

	ref, _ := reload(t, kv).Item(202)
	assert.Equal(t, "12:40", *ref.Item.ActualArrival)

	require.NoError(t, s.ClearCheckIn(ctx, 202, trip.Arrival))
	ref, _ = reload(t, kv).Item(202)
	assert.Nil(t, ref.Item.ActualArrival)
}

func TestStore_NoOpOnMissingID(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)
	require.NoError(t, s.CheckIn(ctx, 101, trip.Arrival))
	before := allCheckIns(s.Schedule())

	entry, err := kv.Entry(ctx, Key)
	require.NoError(t, err)

	require.NoError(t, s.CheckIn(ctx, 99999, trip.Arrival))
	require.NoError(t, s.UpdateCheckInTime(ctx, 99999, "10:00", trip.Departure))
	require.NoError(t, s.ClearCheckIn(ctx, 99999, trip.Arrival))
	require.NoError(t, s.UpdateItem(ctx, 99999, ItemPatch{Location: strPtr("X")}))
	require.NoError(t, s.DeleteItem(ctx, 99999))
	id, err := s.AddItem(ctx, 42, ItemFields{Time: "10:00"})
	require.NoError(t, err)
	assert.Zero(t, id)

	assert.Equal(t, before, allCheckIns(s.Schedule()))

	after, err := kv.Entry(ctx, Key)
	require.NoError(t, err)
	assert.Equal(t, entry.Revision, after.Revision, "no-ops must not write")
}

func TestStore_AddItemSortsAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	details := trip.Details{Note: "bring cash"}
	id, err := s.AddItem(ctx, 1, ItemFields{
		Time:     "13:00",
		Location: "Lunch",
		Type:     trip.CategoryFood,
		Details:  &details,
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), id)

	day, ok := s.Day(1)
	require.True(t, ok)
	require.Len(t, day.Items, 6)
	assert.Equal(t, id, day.Items[2].ID)
	assertSorted(t, day)

	added := day.Items[2]
	assert.Nil(t, added.ActualArrival)
	assert.Nil(t, added.ActualDeparture)
	assert.Equal(t, "bring cash", added.Details.Note)

	reloaded, _ := reload(t, kv).Day(1)
	assert.Equal(t, day.Items, reloaded.Items)
}

func TestStore_AddItemIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestKV(t))

	// The clock is frozen, so every id after the first comes from the
	// sequence's collision path.
	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		id, err := s.AddItem(ctx, 2, ItemFields{Time: "11:00", Location: "X"})
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	all := make(map[int64]bool)
	for _, d := range s.Schedule() {
		for _, it := range d.Items {
			require.False(t, all[it.ID], "duplicate id %d in schedule", it.ID)
			all[it.ID] = true
		}
	}
}

func TestStore_AddItemAfterReloadNeverReusesIDs(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	first, err := s.AddItem(ctx, 1, ItemFields{Time: "20:00"})
	require.NoError(t, err)

	// Same frozen clock in the next session.
	second, err := reload(t, kv).AddItem(ctx, 1, ItemFields{Time: "21:00"})
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestStore_AddThenDeleteRestoresDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestKV(t))
	before, _ := s.Day(1)

	id, err := s.AddItem(ctx, 1, ItemFields{Time: "10:00", Location: "X"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, id))

	after, _ := s.Day(1)
	assert.Equal(t, before.Items, after.Items)
}

func TestStore_UpdateItem(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)
	require.NoError(t, s.CheckIn(ctx, 301, trip.Arrival))

	later := "18:00"
	loc := "明治神宮 (moved)"
	require.NoError(t, s.UpdateItem(ctx, 301, ItemPatch{Time: &later, Location: &loc}))

	day, _ := s.Day(3)
	assertSorted(t, day)
	last := day.Items[len(day.Items)-1]
	assert.Equal(t, int64(301), last.ID)
	assert.Equal(t, loc, last.Location)
	assert.Equal(t, "森林參拜", last.Desc, "unpatched fields are kept")
	assert.Equal(t, "08:41", *last.ActualArrival, "check-ins survive edits")

	reloaded, _ := reload(t, kv).Day(3)
	assert.Equal(t, day.Items, reloaded.Items)
}

func TestStore_OrderingAfterMixedMutations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestKV(t))

	times := []string{"23:59", "00:00", "12:30", "12:30", "07:15"}
	var added []int64
	for _, tm := range times {
		id, err := s.AddItem(ctx, 2, ItemFields{Time: tm})
		require.NoError(t, err)
		added = append(added, id)
	}
	early := "05:00"
	require.NoError(t, s.UpdateItem(ctx, added[0], ItemPatch{Time: &early}))
	require.NoError(t, s.UpdateItem(ctx, 204, ItemPatch{Time: &early}))

	day, _ := s.Day(2)
	assertSorted(t, day)
	assert.Equal(t, "00:00", day.Items[0].Time)
}

func TestStore_CorruptSnapshotFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()

	clean := newTestStore(t, newTestKV(t)).Schedule()

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	kv := newTestKV(t)
	require.NoError(t, kv.Put(ctx, Key, "{not json"))

	tmpl, err := trip.Default()
	require.NoError(t, err)
	s := New(tmpl, kv, Options{Logger: logger})
	require.NoError(t, s.Load(ctx))

	assert.Equal(t, clean, s.Schedule())
	assert.Contains(t, logs.String(), "discarding unreadable itinerary snapshot")
	assert.Contains(t, logs.String(), "CORRUPT_STATE")
}

func TestStore_DuplicateIDSnapshotFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()

	clean := newTestStore(t, newTestKV(t)).Schedule()

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	kv := newTestKV(t)
	require.NoError(t, kv.Put(ctx, Key,
		`{"days":[{"id":1,"items":[{"id":7,"time":"09:00"},{"id":7,"time":"10:00"}]}]}`))

	tmpl, err := trip.Default()
	require.NoError(t, err)
	s := New(tmpl, kv, Options{Logger: logger})
	require.NoError(t, s.Load(ctx))

	assert.Equal(t, clean, s.Schedule())
	_, ok := s.Item(7)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "duplicate stop ids")
}

func TestStore_Restore(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	raw := `{"days":[{"id":1,"title":"Arrive","items":[
		{"id":12,"time":"18:00","location":"Hotel"},
		{"id":11,"time":"09:30","location":"Airport","actualArrival":"09:41"}]}]}`
	require.NoError(t, s.Validate(raw))
	require.NoError(t, s.Restore(ctx, raw))

	days := s.Schedule()
	require.Len(t, days, 1)
	assert.Equal(t, "2026-01-07", days[0].Date)
	require.Len(t, days[0].Items, 2)
	assert.Equal(t, int64(11), days[0].Items[0].ID)
	assert.Equal(t, "09:41", *days[0].Items[0].ActualArrival)

	stored, found, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, found)
	snap, err := DecodeSnapshot(stored)
	require.NoError(t, err)
	assert.Equal(t, int64(11), snap.Days[0].Items[0].ID, "stored snapshot is re-sorted")

	again := reload(t, kv)
	assert.Equal(t, days, again.Schedule())
}

func TestStore_RestoreRejectsInvalidSnapshots(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)
	require.NoError(t, s.CheckIn(ctx, 101, trip.Arrival))
	before, _, err := kv.Get(ctx, Key)
	require.NoError(t, err)

	tests := map[string]string{
		"not json":     `{"days":`,
		"duplicate id": `{"days":[{"id":1,"items":[{"id":7,"time":"09:00"},{"id":7,"time":"10:00"}]}]}`,
		"bad time":     `{"days":[{"id":1,"items":[{"id":7,"time":"25:99"}]}]}`,
		"bad check-in": `{"days":[{"id":1,"items":[{"id":7,"time":"09:00","actualDeparture":"later"}]}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			err := s.Restore(ctx, raw)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

			after, _, err := kv.Get(ctx, Key)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, 1, s.Progress().Arrived)
		})
	}
}

func TestStore_LegacySnapshotOverlaysCheckIns(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Put(ctx, Key,
		`[{"id":1,"items":[{"id":101,"actualArrival":"08:20"},{"id":102,"actualDeparture":"13:00"}]}]`))

	s := newTestStore(t, kv)

	ref, _ := s.Item(101)
	assert.Equal(t, "08:20", *ref.Item.ActualArrival)
	ref, _ = s.Item(102)
	assert.Equal(t, "13:00", *ref.Item.ActualDeparture)
	assert.Len(t, s.Schedule(), 5)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	s := newTestStore(t, kv)

	_, err := s.AddItem(ctx, 5, ItemFields{Time: "12:00"})
	require.NoError(t, err)
	require.NoError(t, s.CheckIn(ctx, 501, trip.Arrival))

	require.NoError(t, s.Reset(ctx))

	fresh := newTestStore(t, newTestKV(t)).Schedule()
	assert.Equal(t, fresh, s.Schedule())
	assert.Equal(t, fresh, reload(t, kv).Schedule())
}

func TestStore_ScheduleIsACopy(t *testing.T) {
	s := newTestStore(t, newTestKV(t))

	days := s.Schedule()
	days[0].Items[0].Location = "mutated"
	days[0].Items = nil

	day, _ := s.Day(1)
	assert.Equal(t, "桃園機場 1 航廈", day.Items[0].Location)
}

func TestStore_Progress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestKV(t))

	for _, id := range []int64{101, 102, 103, 104} {
		require.NoError(t, s.CheckIn(ctx, id, trip.Arrival))
	}
	require.NoError(t, s.CheckIn(ctx, 101, trip.Departure))

	assert.Equal(t, Progress{Total: 16, Arrived: 4, Departed: 1, Percent: 25}, s.Progress())
}

type failingStore struct {
	db.Store
}

func (failingStore) Put(context.Context, string, string) error {
	return stderrors.New("disk full")
}

func TestStore_PersistFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, failingStore{Store: newTestKV(t)})

	err := s.CheckIn(ctx, 101, trip.Arrival)
	require.Error(t, err)

	// The in-memory change stands.
	ref, _ := s.Item(101)
	assert.NotNil(t, ref.Item.ActualArrival)
}

func assertSorted(t *testing.T, day trip.Day) {
	t.Helper()
	for i := 1; i < len(day.Items); i++ {
		assert.LessOrEqual(t, day.Items[i-1].Time, day.Items[i].Time,
			"day %d not sorted at %d", day.ID, i)
	}
}

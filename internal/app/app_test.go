package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tripkit/internal/config"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/itinerary"
	"github.com/hpungsan/tripkit/internal/trip"
)

func open(t *testing.T, dir string, cfg *config.Config) *App {
	t.Helper()
	a, err := Open(context.Background(), Options{
		BaseDir: dir,
		Config:  cfg,
		Now:     func() time.Time { return time.Date(2026, 1, 7, 14, 2, 0, 0, time.Local) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpen_Defaults(t *testing.T) {
	a := open(t, t.TempDir(), nil)

	assert.Len(t, a.Itinerary.Schedule(), 5)
	assert.Len(t, a.Checklist.Groups(), 2)
	assert.Empty(t, a.Vouchers.List())
	assert.Equal(t, float64(100000), a.Expenses.Ledger().Budget)

	// No API key: the built-in forecast covers every trip day.
	res := a.Weather.Forecast(context.Background())
	assert.True(t, res.Stale)
	assert.Len(t, res.Forecast.Slots, 5)
}

func TestOpen_StateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := open(t, dir, nil)
	require.NoError(t, a.Itinerary.CheckIn(ctx, 104, trip.Arrival))
	require.NoError(t, a.Checklist.Toggle(ctx, "luggage", 8))
	require.NoError(t, a.Close())

	b := open(t, dir, nil)
	ref, ok := b.Itinerary.Item(104)
	require.True(t, ok)
	assert.Equal(t, "14:02", *ref.Item.ActualArrival)
	assert.Equal(t, 5, b.Checklist.Progress())
}

func TestOpen_CustomTemplateAndOverlayMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kyoto.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"info": {"title": "Kyoto", "startDate": "2026-03-30", "location": {"name": "Kyoto", "lat": "35.0116", "lon": "135.7681"}},
		"itinerary": [{"id": 1, "title": "Day 1", "items": [{"id": 1, "time": "09:00", "location": "Fushimi Inari"}]}]
	}`), 0600))

	cfg := config.DefaultConfig()
	cfg.TemplatePath = path
	cfg.OverlayMode = string(itinerary.OverlayByID)

	a := open(t, dir, cfg)
	days := a.Itinerary.Schedule()
	require.Len(t, days, 1)
	assert.Equal(t, "2026-03-30", days[0].Date)
	assert.Equal(t, "Kyoto", a.Itinerary.Info().Title)
}

func TestOpen_InvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"info":{"startDate":"soon"},"itinerary":[]}`), 0600))

	cfg := config.DefaultConfig()
	cfg.TemplatePath = path

	_, err := Open(context.Background(), Options{BaseDir: dir, Config: cfg})
	assert.True(t, errors.Is(err, errors.ErrInvalidTemplate))
}

func TestDo_SerializesMutations(t *testing.T) {
	ctx := context.Background()
	a := open(t, t.TempDir(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Do(func() error {
				_, err := a.Itinerary.AddItem(ctx, 3, itinerary.ItemFields{Time: "20:00", Location: "Izakaya"})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	day, _ := a.Itinerary.Day(3)
	assert.Len(t, day.Items, 11)

	seen := make(map[int64]bool)
	for _, it := range day.Items {
		assert.False(t, seen[it.ID])
		seen[it.ID] = true
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := open(t, dir, nil)

	require.NoError(t, a.Itinerary.CheckIn(ctx, 203, trip.Arrival))
	require.NoError(t, a.Checklist.Toggle(ctx, "tasks", 102))

	res, err := a.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports"), filepath.Dir(res.Path))
	assert.ElementsMatch(t, []string{itinerary.Key, "checklist"}, res.Keys)

	require.NoError(t, a.Itinerary.Reset(ctx))
	require.NoError(t, a.Checklist.Toggle(ctx, "tasks", 102))
	assert.Equal(t, 0, a.Itinerary.Progress().Arrived)

	imported, err := a.Import(ctx, res.Path)
	require.NoError(t, err)
	assert.Len(t, imported.Imported, 2)

	ref, _ := a.Itinerary.Item(203)
	require.NotNil(t, ref.Item.ActualArrival)
	assert.Equal(t, "14:02", *ref.Item.ActualArrival)
	assert.Equal(t, 5, a.Checklist.Progress())
}

func writeExport(t *testing.T, a *App, name string, records map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(a.BackupDir(), 0700))

	lines := []string{`{"_tripkit_export":true,"schema_version":"1"}`}
	for _, key := range []string{"checklist", itinerary.Key} {
		value, ok := records[key]
		if !ok {
			continue
		}
		line, err := json.Marshal(map[string]string{"key": key, "value": value})
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
	path := filepath.Join(a.BackupDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func TestImport_RejectsInvalidItinerary(t *testing.T) {
	ctx := context.Background()
	a := open(t, t.TempDir(), nil)
	require.NoError(t, a.Itinerary.CheckIn(ctx, 101, trip.Arrival))
	before, _, err := a.KV.Get(ctx, itinerary.Key)
	require.NoError(t, err)

	path := writeExport(t, a, "tampered.jsonl", map[string]string{
		"checklist":    `{"groups":[]}`,
		itinerary.Key: `{"days":[{"id":1,"title":"x","items":[{"id":7,"time":"25:99"},{"id":7,"time":"01:00"}]}]}`,
	})
	_, err = a.Import(ctx, path)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	after, _, err := a.KV.Get(ctx, itinerary.Key)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, found, err := a.KV.Get(ctx, "checklist")
	require.NoError(t, err)
	assert.False(t, found, "no record may be written from a rejected file")
	assert.Equal(t, 1, a.Itinerary.Progress().Arrived)
	_, ok := a.Itinerary.Item(7)
	assert.False(t, ok)
}

func TestImport_ItineraryGoesThroughGateway(t *testing.T) {
	ctx := context.Background()
	a := open(t, t.TempDir(), nil)

	raw := `{"days":[{"id":1,"title":"x","items":[{"id":9,"time":"18:00"},{"id":8,"time":"07:15","actualArrival":"07:20"}]}]}`
	path := writeExport(t, a, "edited.jsonl", map[string]string{itinerary.Key: raw})
	_, err := a.Import(ctx, path)
	require.NoError(t, err)

	day, ok := a.Itinerary.Day(1)
	require.True(t, ok)
	require.Len(t, day.Items, 2)
	assert.Equal(t, int64(8), day.Items[0].ID)
	assert.Equal(t, "07:20", *day.Items[0].ActualArrival)

	stored, _, err := a.KV.Get(ctx, itinerary.Key)
	require.NoError(t, err)
	assert.NotEqual(t, raw, stored, "the gateway re-encodes the imported schedule")
	snap, err := itinerary.DecodeSnapshot(stored)
	require.NoError(t, err)
	assert.Equal(t, int64(8), snap.Days[0].Items[0].ID)
}

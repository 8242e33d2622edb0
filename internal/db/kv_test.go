package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tripkit/internal/errors"
)

func newTestKV(t *testing.T) *KV {
	t.Helper()
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewKV(database)
}

func TestKV_GetMissing(t *testing.T) {
	kv := newTestKV(t)

	value, found, err := kv.Get(context.Background(), "itinerary")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, value)
}

func TestKV_PutOverwrites(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "itinerary", `{"days":[]}`))
	require.NoError(t, kv.Put(ctx, "itinerary", `{"days":[{"id":1}]}`))

	value, found, err := kv.Get(ctx, "itinerary")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"days":[{"id":1}]}`, value)

	entry, err := kv.Entry(ctx, "itinerary")
	require.NoError(t, err)
	require.Equal(t, int64(2), entry.Revision)
	require.NotZero(t, entry.UpdatedAt)
}

func TestKV_DeleteAndKeys(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "vouchers", `[]`))
	require.NoError(t, kv.Put(ctx, "checklist", `{}`))

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"checklist", "vouchers"}, keys)

	require.NoError(t, kv.Delete(ctx, "vouchers"))
	require.NoError(t, kv.Delete(ctx, "vouchers")) // missing key is fine

	keys, err = kv.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"checklist"}, keys)
}

func TestKV_EntryNotFound(t *testing.T) {
	kv := newTestKV(t)

	_, err := kv.Entry(context.Background(), "weather_cache")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, NewKV(first).Put(ctx, "checklist", `{"groups":[]}`))
	first.Close()

	second, err := Init(dir)
	require.NoError(t, err)
	defer second.Close()

	value, found, err := NewKV(second).Get(ctx, "checklist")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"groups":[]}`, value)
}

func TestKV_JSONDocuments(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	type doc struct {
		Budget float64 `json:"budget"`
	}

	var got doc
	found, err := GetJSON(ctx, kv, "expense", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, PutJSON(ctx, kv, "expense", doc{Budget: 50000}))

	found, err = GetJSON(ctx, kv, "expense", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 50000.0, got.Budget)

	require.NoError(t, kv.Put(ctx, "expense", "{not json"))
	found, err = GetJSON(ctx, kv, "expense", &got)
	require.True(t, found)
	require.True(t, errors.Is(err, errors.ErrCorruptState))
}

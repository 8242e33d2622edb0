package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestSequence_UsesEpochMillis(t *testing.T) {
	at := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seq := NewSequenceWithClock(func() time.Time { return at })

	require.Equal(t, at.UnixMilli(), seq.Next())
}

func TestSequence_StrictlyIncreasingOnFrozenClock(t *testing.T) {
	at := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seq := NewSequenceWithClock(func() time.Time { return at })

	first := seq.Next()
	second := seq.Next()
	third := seq.Next()
	require.Equal(t, first+1, second)
	require.Equal(t, second+1, third)
}

func TestSequence_ClockGoingBackwards(t *testing.T) {
	at := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seq := NewSequenceWithClock(func() time.Time { return at })
	first := seq.Next()

	at = at.Add(-time.Hour)
	require.Greater(t, seq.Next(), first)
}

func TestSequence_ObserveRaisesFloor(t *testing.T) {
	at := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seq := NewSequenceWithClock(func() time.Time { return at })

	future := at.Add(24 * time.Hour).UnixMilli()
	seq.Observe(future)
	seq.Observe(101) // lower ids never lower the floor

	require.Equal(t, future+1, seq.Next())
}

func TestULID(t *testing.T) {
	a, err := ULID()
	require.NoError(t, err)
	b, err := ULID()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	_, err = ulid.Parse(a)
	require.NoError(t, err)
}

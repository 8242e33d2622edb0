// Package ids generates record identifiers.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sequence hands out integer ids derived from the wall clock in epoch
// milliseconds. Ids are strictly increasing: when the clock has not advanced
// (or went backwards) the next id is last+1. Not safe for concurrent use.
type Sequence struct {
	last int64
	now  func() time.Time
}

// NewSequence returns a Sequence reading time.Now.
func NewSequence() *Sequence {
	return &Sequence{now: time.Now}
}

// NewSequenceWithClock returns a Sequence reading the given clock.
func NewSequenceWithClock(now func() time.Time) *Sequence {
	return &Sequence{now: now}
}

// Observe raises the floor so that future ids are greater than id.
// Callers feed it every id already in use.
func (s *Sequence) Observe(id int64) {
	if id > s.last {
		s.last = id
	}
}

// Next returns a fresh id.
func (s *Sequence) Next() int64 {
	id := int64(ulid.Timestamp(s.now()))
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// ULID generates a new ULID string.
func ULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

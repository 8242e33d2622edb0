package itinerary

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Key is the storage key of the itinerary snapshot.
const Key = "itinerary"

// Gateway reads and writes the itinerary snapshot. It is the only writer of Key.
type Gateway struct {
	store db.Store
	log   *logrus.Entry
}

// NewGateway returns a Gateway over store.
func NewGateway(store db.Store, logger logrus.FieldLogger) *Gateway {
	return &Gateway{store: store, log: logging.Component(logger, "itinerary")}
}

// Load returns the persisted snapshot, or nil when none is usable. A stored
// value that does not parse, or that repeats a stop id, is logged and
// reported as absent. Only a failing
// read of the store itself is returned as an error.
func (g *Gateway) Load(ctx context.Context) (*Snapshot, error) {
	raw, found, err := g.store.Get(ctx, Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	snap, err := DecodeSnapshot(raw)
	if err != nil {
		g.log.WithFields(logging.Fields{
			"key":   Key,
			"error": errors.NewCorruptState(Key, err).Error(),
		}).Warn("discarding unreadable itinerary snapshot")
		return nil, nil
	}
	if id, dup := duplicateItemID(snap.Days); dup && !snap.Legacy {
		g.log.WithFields(logging.Fields{
			"key":     Key,
			"item_id": id,
		}).Warn("discarding itinerary snapshot with duplicate stop ids")
		return nil, nil
	}
	return snap, nil
}

// Save overwrites the snapshot with the full day list.
func (g *Gateway) Save(ctx context.Context, days []trip.Day) error {
	value, err := EncodeSnapshot(days)
	if err != nil {
		return errors.NewInternal(err)
	}
	return g.store.Put(ctx, Key, value)
}

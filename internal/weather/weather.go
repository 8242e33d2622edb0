// Package weather caches the trip forecast with a freshness window.
package weather

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Key is the storage key of the forecast cache.
const Key = "weather_cache"

// DefaultTTL is how long a cached forecast is served without refetching.
const DefaultTTL = 3 * time.Hour

// Slot is one 3-hour forecast step.
type Slot struct {
	Time      int64   `json:"dt"` // unix seconds
	Temp      float64 `json:"temp"`
	Code      int     `json:"code"`
	Condition string  `json:"condition"`
	Pop       float64 `json:"pop"` // 0..1
}

// Forecast is what the cache stores.
type Forecast struct {
	Location       string `json:"location"`
	TimezoneOffset int    `json:"timezone_offset"` // seconds east of UTC
	Slots          []Slot `json:"slots"`
}

type cacheEntry struct {
	Data      Forecast `json:"data"`
	Timestamp int64    `json:"timestamp"` // epoch millis
}

// Result is returned by Service.Forecast. Err is set (and Stale true) when
// the upstream could not be reached; Forecast then holds the last cached or
// built-in value.
type Result struct {
	Forecast  Forecast `json:"forecast"`
	FetchedAt int64    `json:"fetched_at,omitempty"`
	Cached    bool     `json:"cached"`
	Stale     bool     `json:"stale"`
	Err       error    `json:"-"`
	Error     string   `json:"error,omitempty"`
}

// Options tunes a Service.
type Options struct {
	TTL      time.Duration
	Now      func() time.Time
	Logger   logrus.FieldLogger
	Location trip.Location
	// Dates seeds the built-in forecast used when nothing was ever fetched.
	Dates []string
}

// Service serves forecasts from the cache, refreshing through a Provider.
type Service struct {
	provider Provider
	store    db.Store
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Entry
	location trip.Location
	dates    []string
}

// NewService returns a Service. A nil provider behaves as a permanently
// unavailable upstream.
func NewService(provider Provider, store db.Store, opts Options) *Service {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		provider: provider,
		store:    store,
		ttl:      opts.TTL,
		now:      opts.Now,
		log:      logging.Component(opts.Logger, "weather"),
		location: opts.Location,
		dates:    opts.Dates,
	}
}

// Forecast returns the cached forecast when it is younger than the TTL and
// fetches a new one otherwise.
func (s *Service) Forecast(ctx context.Context) Result {
	entry, ok := s.cached(ctx)
	if ok && s.now().UnixMilli()-entry.Timestamp < s.ttl.Milliseconds() {
		return Result{Forecast: entry.Data, FetchedAt: entry.Timestamp, Cached: true}
	}
	return s.fetch(ctx, entry, ok)
}

// Refresh fetches a new forecast regardless of cache age.
func (s *Service) Refresh(ctx context.Context) Result {
	entry, ok := s.cached(ctx)
	return s.fetch(ctx, entry, ok)
}

func (s *Service) fetch(ctx context.Context, prev cacheEntry, havePrev bool) Result {
	f, err := s.fetchUpstream(ctx)
	if err != nil {
		s.log.WithError(err).Warn("forecast unavailable, serving fallback")
		res := Result{Forecast: DefaultForecast(s.location.Name, s.dates), Stale: true, Err: err, Error: err.Error()}
		if havePrev {
			res.Forecast = prev.Data
			res.FetchedAt = prev.Timestamp
		}
		return res
	}

	entry := cacheEntry{Data: f, Timestamp: s.now().UnixMilli()}
	if err := db.PutJSON(ctx, s.store, Key, entry); err != nil {
		s.log.WithError(err).Warn("failed to cache forecast")
	}
	return Result{Forecast: f, FetchedAt: entry.Timestamp}
}

func (s *Service) fetchUpstream(ctx context.Context) (Forecast, error) {
	if s.provider == nil {
		return Forecast{}, errors.NewUpstreamUnavailable("weather provider", nil)
	}
	f, err := s.provider.Fetch(ctx, s.location)
	if err != nil {
		if !errors.Is(err, errors.ErrUpstreamUnavailable) {
			err = errors.NewUpstreamUnavailable(s.provider.Name(), err)
		}
		return Forecast{}, err
	}
	return f, nil
}

func (s *Service) cached(ctx context.Context) (cacheEntry, bool) {
	var entry cacheEntry
	found, err := db.GetJSON(ctx, s.store, Key, &entry)
	if err != nil {
		s.log.WithFields(logging.Fields{"key": Key, "error": err.Error()}).Warn("ignoring forecast cache")
		return cacheEntry{}, false
	}
	return entry, found
}

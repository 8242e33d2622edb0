package itinerary

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/ids"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	OverlayMode OverlayMode
	// Now is the wall clock used for check-in stamps and new stop ids.
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Store owns the live schedule. It is not safe for concurrent use; callers
// that share one across goroutines serialize access themselves.
type Store struct {
	tmpl    *trip.Template
	gateway *Gateway
	mode    OverlayMode
	now     func() time.Time
	seq     *ids.Sequence
	log     *logrus.Entry

	days []trip.Day
}

// New returns a Store for tmpl persisting through store. Call Load before use.
func New(tmpl *trip.Template, store db.Store, opts Options) *Store {
	if opts.OverlayMode == "" {
		opts.OverlayMode = OverlayByPosition
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		tmpl:    tmpl,
		gateway: NewGateway(store, opts.Logger),
		mode:    opts.OverlayMode,
		now:     opts.Now,
		seq:     ids.NewSequenceWithClock(opts.Now),
		log:     logging.Component(opts.Logger, "itinerary"),
	}
}

// Load reconciles the template with the persisted snapshot and makes the
// result the live schedule.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.gateway.Load(ctx)
	if err != nil {
		return err
	}
	s.install(Reconcile(s.tmpl, snap, s.mode))
	s.log.WithFields(logging.Fields{
		"days":     len(s.days),
		"snapshot": snap != nil,
	}).Debug("itinerary loaded")
	return nil
}

// Reset drops every user change and check-in, rebuilding from the template.
func (s *Store) Reset(ctx context.Context) error {
	s.install(Reconcile(s.tmpl, nil, s.mode))
	return s.persist(ctx)
}

func (s *Store) install(days []trip.Day) {
	s.days = days
	for _, d := range days {
		for _, it := range d.Items {
			s.seq.Observe(it.ID)
		}
	}
}

func (s *Store) persist(ctx context.Context) error {
	return s.gateway.Save(ctx, s.days)
}

// Info returns the trip header.
func (s *Store) Info() trip.Info {
	return s.tmpl.Info
}

// Schedule returns a copy of the live schedule.
func (s *Store) Schedule() []trip.Day {
	return trip.CloneDays(s.days)
}

// Dates returns the calendar date of every day in order.
func (s *Store) Dates() []string {
	dates := make([]string, len(s.days))
	for i, d := range s.days {
		dates[i] = d.Date
	}
	return dates
}

// Day returns a copy of the day with the given id.
func (s *Store) Day(id int) (trip.Day, bool) {
	if d := s.findDay(id); d != nil {
		return d.Clone(), true
	}
	return trip.Day{}, false
}

// ItemRef is a stop together with the day that holds it.
type ItemRef struct {
	DayID int       `json:"day_id"`
	Date  string    `json:"date"`
	Item  trip.Item `json:"item"`
}

// Item returns a copy of the first stop with the given id.
func (s *Store) Item(id int64) (ItemRef, bool) {
	di, ii := s.findItem(id)
	if di < 0 {
		return ItemRef{}, false
	}
	d := s.days[di]
	return ItemRef{DayID: d.ID, Date: d.Date, Item: d.Items[ii].Clone()}, true
}

// Progress counts checked-in stops.
type Progress struct {
	Total    int `json:"total"`
	Arrived  int `json:"arrived"`
	Departed int `json:"departed"`
	Percent  int `json:"percent"`
}

// Progress reports how many stops have been checked into.
func (s *Store) Progress() Progress {
	var p Progress
	for _, d := range s.days {
		for _, it := range d.Items {
			p.Total++
			if it.ActualArrival != nil {
				p.Arrived++
			}
			if it.ActualDeparture != nil {
				p.Departed++
			}
		}
	}
	if p.Total > 0 {
		p.Percent = (p.Arrived*100 + p.Total/2) / p.Total
	}
	return p
}

func (s *Store) findDay(id int) *trip.Day {
	for i := range s.days {
		if s.days[i].ID == id {
			return &s.days[i]
		}
	}
	return nil
}

// findItem returns the day and item index of the first stop with id, or -1, -1.
func (s *Store) findItem(id int64) (int, int) {
	for di := range s.days {
		for ii := range s.days[di].Items {
			if s.days[di].Items[ii].ID == id {
				return di, ii
			}
		}
	}
	return -1, -1
}

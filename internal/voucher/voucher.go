// Package voucher stores booking confirmations and tickets.
package voucher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/ids"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Key is the storage key of the vault. The value is a bare JSON array.
const Key = "vouchers"

// Voucher is one stored document reference.
type Voucher struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Title string `json:"title"`
	Kind  string `json:"kind,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Note  string `json:"note,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Fields are the editable fields of a voucher (nil = don't change).
type Fields struct {
	Date  *string
	Title *string
	Kind  *string
	Ref   *string
	Note  *string
	URL   *string
}

func (f Fields) apply(v *Voucher) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.Date, f.Date)
	set(&v.Title, f.Title)
	set(&v.Kind, f.Kind)
	set(&v.Ref, f.Ref)
	set(&v.Note, f.Note)
	set(&v.URL, f.URL)
}

// Options tunes a Store.
type Options struct {
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Store owns the vault. Not safe for concurrent use.
type Store struct {
	store    db.Store
	now      func() time.Time
	log      *logrus.Entry
	vouchers []Voucher
}

// New returns a Store persisting through store. Call Load before use.
func New(store db.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		store:    store,
		now:      opts.Now,
		log:      logging.Component(opts.Logger, "voucher"),
		vouchers: []Voucher{},
	}
}

// Load reads the persisted vault; missing or unreadable means empty.
func (s *Store) Load(ctx context.Context) error {
	var vouchers []Voucher
	if _, err := db.GetJSON(ctx, s.store, Key, &vouchers); err != nil {
		if !errors.Is(err, errors.ErrCorruptState) {
			return err
		}
		s.log.WithFields(logging.Fields{"key": Key, "error": err.Error()}).Warn("discarding unreadable vouchers")
		vouchers = nil
	}
	if vouchers == nil {
		vouchers = []Voucher{}
	}
	s.vouchers = vouchers
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	return db.PutJSON(ctx, s.store, Key, s.vouchers)
}

// List returns all vouchers, newest first.
func (s *Store) List() []Voucher {
	return append([]Voucher{}, s.vouchers...)
}

// Get returns the voucher with id.
func (s *Store) Get(id string) (Voucher, bool) {
	if i := s.index(id); i >= 0 {
		return s.vouchers[i], true
	}
	return Voucher{}, false
}

// Add stores a voucher at the top of the list and returns its id. An unset
// date defaults to today.
func (s *Store) Add(ctx context.Context, f Fields) (string, error) {
	id, err := ids.ULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	v := Voucher{ID: id}
	f.apply(&v)
	if v.Date == "" {
		v.Date = s.now().Format(trip.DateLayout)
	}
	s.vouchers = append([]Voucher{v}, s.vouchers...)
	return id, s.persist(ctx)
}

// Update merges f into the voucher with id. A missing id is a no-op.
func (s *Store) Update(ctx context.Context, id string, f Fields) error {
	i := s.index(id)
	if i < 0 {
		return nil
	}
	f.apply(&s.vouchers[i])
	return s.persist(ctx)
}

// Delete removes the voucher with id. A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return nil
	}
	s.vouchers = append(s.vouchers[:i], s.vouchers[i+1:]...)
	return s.persist(ctx)
}

func (s *Store) index(id string) int {
	for i := range s.vouchers {
		if s.vouchers[i].ID == id {
			return i
		}
	}
	return -1
}

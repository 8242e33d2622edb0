// Package expense keeps the trip's spending ledger and budget.
package expense

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/ids"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Key is the storage key of the ledger.
const Key = "expense"

const (
	DefaultBudget = 100000
	DefaultRate   = 0.22
)

// Currency of a recorded amount.
type Currency string

const (
	JPY Currency = "JPY"
	TWD Currency = "TWD"
)

// Expense is one recorded payment.
type Expense struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Title    string   `json:"title"`
	Amount   float64  `json:"amount"`
	Currency Currency `json:"currency"`
	Category string   `json:"category,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// Ledger is the persisted document. Budget is in JPY; CustomRate is TWD per JPY.
type Ledger struct {
	Budget     float64   `json:"budget"`
	CustomRate float64   `json:"customRate"`
	Expenses   []Expense `json:"expenses"`
}

func defaultLedger() Ledger {
	return Ledger{Budget: DefaultBudget, CustomRate: DefaultRate, Expenses: []Expense{}}
}

// Options tunes a Store.
type Options struct {
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Store owns the ledger. Not safe for concurrent use.
type Store struct {
	store  db.Store
	now    func() time.Time
	log    *logrus.Entry
	ledger Ledger
}

// New returns a Store persisting through store. Call Load before use.
func New(store db.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		store:  store,
		now:    opts.Now,
		log:    logging.Component(opts.Logger, "expense"),
		ledger: defaultLedger(),
	}
}

// Load reads the persisted ledger; a missing or unreadable value yields an
// empty ledger with the default budget and rate.
func (s *Store) Load(ctx context.Context) error {
	ledger := defaultLedger()
	_, err := db.GetJSON(ctx, s.store, Key, &ledger)
	if err != nil {
		if !errors.Is(err, errors.ErrCorruptState) {
			return err
		}
		s.log.WithFields(logging.Fields{"key": Key, "error": err.Error()}).Warn("discarding unreadable ledger")
		ledger = defaultLedger()
	}
	if ledger.CustomRate <= 0 {
		ledger.CustomRate = DefaultRate
	}
	if ledger.Expenses == nil {
		ledger.Expenses = []Expense{}
	}
	s.ledger = ledger
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	return db.PutJSON(ctx, s.store, Key, s.ledger)
}

// Ledger returns a copy of the ledger.
func (s *Store) Ledger() Ledger {
	out := s.ledger
	out.Expenses = append([]Expense{}, s.ledger.Expenses...)
	return out
}

// Fields describe a new expense. Empty Date means today; empty Currency means JPY.
type Fields struct {
	Date     string
	Title    string
	Amount   float64
	Currency Currency
	Category string
	Note     string
}

// Add records an expense at the top of the ledger and returns its id.
func (s *Store) Add(ctx context.Context, f Fields) (string, error) {
	if f.Currency == "" {
		f.Currency = JPY
	}
	f.Currency = Currency(strings.ToUpper(string(f.Currency)))
	if f.Currency != JPY && f.Currency != TWD {
		return "", errors.NewInvalidRequest(fmt.Sprintf("currency must be JPY or TWD, got %q", f.Currency))
	}
	if f.Amount < 0 || math.IsNaN(f.Amount) || math.IsInf(f.Amount, 0) {
		return "", errors.NewInvalidRequest("amount must be a non-negative number")
	}
	if f.Date == "" {
		f.Date = s.now().Format(trip.DateLayout)
	}

	id, err := ids.ULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	e := Expense{
		ID:       id,
		Date:     f.Date,
		Title:    f.Title,
		Amount:   f.Amount,
		Currency: f.Currency,
		Category: f.Category,
		Note:     f.Note,
	}
	s.ledger.Expenses = append([]Expense{e}, s.ledger.Expenses...)
	return id, s.persist(ctx)
}

// Remove deletes an expense. A missing id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	for i, e := range s.ledger.Expenses {
		if e.ID == id {
			s.ledger.Expenses = append(s.ledger.Expenses[:i], s.ledger.Expenses[i+1:]...)
			return s.persist(ctx)
		}
	}
	return nil
}

// UpdateRate sets the TWD-per-JPY conversion rate.
func (s *Store) UpdateRate(ctx context.Context, rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return errors.NewInvalidRequest("rate must be a positive number")
	}
	s.ledger.CustomRate = rate
	return s.persist(ctx)
}

// SetBudget sets the JPY budget.
func (s *Store) SetBudget(ctx context.Context, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.NewInvalidRequest("budget must be a non-negative number")
	}
	s.ledger.Budget = amount
	return s.persist(ctx)
}

// TotalSpent sums all expenses in JPY.
func (s *Store) TotalSpent() float64 {
	var sum float64
	for _, e := range s.ledger.Expenses {
		if e.Currency == TWD {
			sum += e.Amount / s.ledger.CustomRate
		} else {
			sum += e.Amount
		}
	}
	return sum
}

// TotalSpentTWD is TotalSpent converted to TWD and rounded to a whole number.
func (s *Store) TotalSpentTWD() float64 {
	return math.Round(s.TotalSpent() * s.ledger.CustomRate)
}

// Remaining is the budget left in JPY; negative when overspent.
func (s *Store) Remaining() float64 {
	return s.ledger.Budget - s.TotalSpent()
}

// Summary is the ledger's headline numbers.
type Summary struct {
	Budget        float64 `json:"budget"`
	Rate          float64 `json:"rate"`
	TotalSpent    float64 `json:"total_spent_jpy"`
	TotalSpentTWD float64 `json:"total_spent_twd"`
	Remaining     float64 `json:"remaining_jpy"`
	Count         int     `json:"count"`
}

// Summarize returns the headline numbers.
func (s *Store) Summarize() Summary {
	return Summary{
		Budget:        s.ledger.Budget,
		Rate:          s.ledger.CustomRate,
		TotalSpent:    s.TotalSpent(),
		TotalSpentTWD: s.TotalSpentTWD(),
		Remaining:     s.Remaining(),
		Count:         len(s.ledger.Expenses),
	}
}

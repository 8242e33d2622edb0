// Package checklist keeps the packing list and pre-departure tasks.
package checklist

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/ids"
	"github.com/hpungsan/tripkit/internal/logging"
)

// Key is the storage key of the checklist.
const Key = "checklist"

// Item is one checkable entry.
type Item struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Group is a named list of entries.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

type document struct {
	Groups []Group `json:"groups"`
}

// DefaultGroups returns the built-in luggage and task lists.
func DefaultGroups() []Group {
	luggage := []string{
		"日幣現金", "充電線與行動電源", "換洗衣物 (5套)", "睡衣 (2套)", "襪子 (5套)",
		"毛帽、厚外套", "個人藥品", "護照", "驗光單", "雨傘", "拖鞋",
	}
	tasks := []string{
		"購買來回機票", "購買旅平險", "辦好電信漫遊或 e-SIM",
		"Tabelog 預定 敘敘苑 (晴空塔店)", "Tabelog 預定 牛舌的檸檬 (新宿)",
		"購買 墨田水族館 票券", "購買 箱根週遊券 (2日)", "填寫 Visit Japan Web", "PayPay 電子錢包",
	}
	return []Group{
		{ID: "luggage", Name: "行李物資", Items: numbered(1, luggage)},
		{ID: "tasks", Name: "出發前待辦", Items: numbered(101, tasks)},
	}
}

func numbered(first int64, texts []string) []Item {
	items := make([]Item, len(texts))
	for i, text := range texts {
		items[i] = Item{ID: first + int64(i), Text: text}
	}
	return items
}

// Options tunes a Store.
type Options struct {
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Store owns the checklist. Not safe for concurrent use.
type Store struct {
	store  db.Store
	seq    *ids.Sequence
	log    *logrus.Entry
	groups []Group
}

// New returns a Store persisting through store. Call Load before use.
func New(store db.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		store: store,
		seq:   ids.NewSequenceWithClock(opts.Now),
		log:   logging.Component(opts.Logger, "checklist"),
	}
}

// Load reads the persisted groups. A missing or unreadable value yields the
// defaults; both the {"groups": [...]} form and a bare array are accepted.
func (s *Store) Load(ctx context.Context) error {
	raw, found, err := s.store.Get(ctx, Key)
	if err != nil {
		return err
	}

	groups := DefaultGroups()
	if found {
		decoded, err := decode(raw)
		switch {
		case err != nil:
			s.log.WithFields(logging.Fields{
				"key":   Key,
				"error": errors.NewCorruptState(Key, err).Error(),
			}).Warn("discarding unreadable checklist")
		case decoded != nil:
			groups = decoded
		}
	}

	s.groups = groups
	for _, g := range groups {
		for _, it := range g.Items {
			s.seq.Observe(it.ID)
		}
	}
	return nil
}

func decode(raw string) ([]Group, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) > 0 && data[0] == '[' {
		var groups []Group
		err := json.Unmarshal(data, &groups)
		return groups, err
	}
	var doc document
	err := json.Unmarshal(data, &doc)
	return doc.Groups, err
}

func (s *Store) persist(ctx context.Context) error {
	return db.PutJSON(ctx, s.store, Key, document{Groups: s.groups})
}

// Groups returns a copy of all groups.
func (s *Store) Groups() []Group {
	out := make([]Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = g
		out[i].Items = append([]Item{}, g.Items...)
	}
	return out
}

// Toggle flips an entry's completed flag. Missing group or entry is a no-op.
func (s *Store) Toggle(ctx context.Context, groupID string, itemID int64) error {
	g := s.group(groupID)
	if g == nil {
		return nil
	}
	for i := range g.Items {
		if g.Items[i].ID == itemID {
			g.Items[i].Completed = !g.Items[i].Completed
			return s.persist(ctx)
		}
	}
	return nil
}

// Add appends an entry and returns its id, or 0 when the group is missing.
func (s *Store) Add(ctx context.Context, groupID, text string) (int64, error) {
	g := s.group(groupID)
	if g == nil {
		return 0, nil
	}
	item := Item{ID: s.seq.Next(), Text: text}
	g.Items = append(g.Items, item)
	return item.ID, s.persist(ctx)
}

// Remove deletes an entry. Missing group or entry is a no-op.
func (s *Store) Remove(ctx context.Context, groupID string, itemID int64) error {
	g := s.group(groupID)
	if g == nil {
		return nil
	}
	for i := range g.Items {
		if g.Items[i].ID == itemID {
			g.Items = append(g.Items[:i], g.Items[i+1:]...)
			return s.persist(ctx)
		}
	}
	return nil
}

// Progress returns the rounded percentage of completed entries, 0 when empty.
func (s *Store) Progress() int {
	var total, done int
	for _, g := range s.groups {
		for _, it := range g.Items {
			total++
			if it.Completed {
				done++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return (done*100 + total/2) / total
}

func (s *Store) group(id string) *Group {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return &s.groups[i]
		}
	}
	return nil
}

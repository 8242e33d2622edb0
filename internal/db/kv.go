package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/tripkit/internal/errors"
)

// Store is the read/write surface the domain stores persist through.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Entry is one stored value with its bookkeeping columns.
type Entry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updated_at"`
	Revision  int64  `json:"revision"`
}

// KV is a durable string key-value store backed by the kv table.
// Every logical store (itinerary, checklist, ...) owns exactly one key and
// rewrites its whole JSON document on each change.
type KV struct {
	db  *sql.DB
	now func() time.Time
}

// NewKV wraps an initialized database.
func NewKV(database *sql.DB) *KV {
	return &KV{db: database, now: time.Now}
}

// Get returns the value stored under key. found is false when the key is absent.
func (s *KV) Get(ctx context.Context, key string) (value string, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// Put overwrites the value stored under key.
func (s *KV) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at, revision) VALUES (?, ?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			revision = kv.revision + 1
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Entry returns the full row for key, or a NOT_FOUND error.
func (s *KV) Entry(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at, revision FROM kv WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &e.UpdatedAt, &e.Revision)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("key", key)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &e, nil
}

// Keys lists stored keys in lexical order.
func (s *KV) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.NewInternal(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return keys, nil
}

// GetJSON decodes the document stored under key into v. found is false when
// the key is absent. A value that does not decode is a CORRUPT_STATE error;
// v may be partially filled in that case.
func GetJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, errors.NewCorruptState(key, err)
	}
	return true, nil
}

// PutJSON encodes v and overwrites the document stored under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	return s.Put(ctx, key, string(data))
}

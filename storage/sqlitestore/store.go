// Package sqlitestore persists sessions in a local SQLite database, for
// installs where the hub runs as a single long-lived process.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	_ "github.com/mattn/go-sqlite3"
)

const table = "kv"

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
)`

var _ storage.TTLStore = (*Store)(nil)

// Store is a storage.TTLStore backed by a single SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "[sqlitestore Open] %s", path)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "[sqlitestore Open] create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.ErrInvalidKey
	}

	query, args, err := sq.Select("value", "expires_at").From(table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "[sqlitestore Get] build query")
	}

	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[sqlitestore Get] %s", key)
	}
	if expiresAt.Valid && !storage.NowTimeFunc().Before(time.Unix(0, expiresAt.Int64)) {
		return nil, errors.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.ErrInvalidKey
	}

	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: storage.NowTimeFunc().Add(ttl).UnixNano(), Valid: true}
	}

	query, args, err := sq.Insert(table).
		Columns("key", "value", "expires_at").
		Values(key, value, expiresAt).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at").
		ToSql()
	if err != nil {
		return errors.Wrapf(err, "[sqlitestore Set] build query")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "[sqlitestore Set] %s", key)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return errors.ErrInvalidKey
	}

	query, args, err := sq.Delete(table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return errors.Wrapf(err, "[sqlitestore Remove] build query")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "[sqlitestore Remove] %s", key)
	}
	return nil
}

// DeleteExpired removes entries whose TTL has passed and reports how many went.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	query, args, err := sq.Delete(table).
		Where(sq.And{sq.NotEq{"expires_at": nil}, sq.LtOrEq{"expires_at": storage.NowTimeFunc().UnixNano()}}).
		ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "[sqlitestore DeleteExpired] build query")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "[sqlitestore DeleteExpired]")
	}
	return res.RowsAffected()
}

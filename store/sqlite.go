package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tricoach"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// SQLiteStore keeps the three documents in a single-table key/value schema.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStore) put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) LoadProfile(ctx context.Context) (*tricoach.ProfileData, error) {
	raw, ok, err := s.get(ctx, KeyProfile)
	if err != nil || !ok {
		return nil, err
	}
	return decodeProfile(raw)
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, profile tricoach.ProfileData) error {
	data, err := encodeJSON(profile)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyProfile, data)
}

func (s *SQLiteStore) LoadDoctrine(ctx context.Context) (*tricoach.DoctrineData, error) {
	raw, ok, err := s.get(ctx, KeyDoctrine)
	if err != nil || !ok {
		return nil, err
	}
	var doctrine tricoach.DoctrineData
	if err := json.Unmarshal(raw, &doctrine); err != nil {
		return nil, fmt.Errorf("decode doctrine: %w", err)
	}
	return &doctrine, nil
}

func (s *SQLiteStore) SaveDoctrine(ctx context.Context, doctrine tricoach.DoctrineData) error {
	data, err := encodeJSON(doctrine)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyDoctrine, data)
}

func (s *SQLiteStore) LoadActivities(ctx context.Context) ([]tricoach.Activity, error) {
	raw, ok, err := s.get(ctx, KeyActivities)
	if err != nil || !ok {
		return nil, err
	}
	return decodeActivities(raw, time.Now())
}

func (s *SQLiteStore) SaveActivities(ctx context.Context, activities []tricoach.Activity) error {
	if activities == nil {
		activities = []tricoach.Activity{}
	}
	data, err := encodeJSON(activities)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyActivities, data)
}

// AddActivities appends to the stored log, preserving existing entries.
func (s *SQLiteStore) AddActivities(ctx context.Context, activities []tricoach.Activity) error {
	current, err := s.LoadActivities(ctx)
	if err != nil {
		return err
	}
	return s.SaveActivities(ctx, append(current, activities...))
}

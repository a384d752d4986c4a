package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yusari/worktimer/internal/model"
	"github.com/yusari/worktimer/internal/profile"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	database.SetMaxOpenConns(1)
	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) UpsertDocumentTime(ctx context.Context, documentKey string, totalSeconds int, now time.Time) error {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents(document_key, total_seconds, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(document_key) DO UPDATE SET
	total_seconds = excluded.total_seconds,
	updated_at = excluded.updated_at`,
		documentKey, totalSeconds, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert document time: %w", err)
	}
	return nil
}

func (s *Store) GetDocumentTime(ctx context.Context, documentKey string) (model.DocumentRecord, error) {
	var record model.DocumentRecord
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
SELECT document_key, total_seconds, updated_at FROM documents WHERE document_key = ?`,
		documentKey).Scan(&record.DocumentKey, &record.TotalSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DocumentRecord{}, ErrNotFound
	}
	if err != nil {
		return model.DocumentRecord{}, fmt.Errorf("get document time: %w", err)
	}
	record.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return record, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]model.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT document_key, total_seconds, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	var records []model.DocumentRecord
	for rows.Next() {
		var record model.DocumentRecord
		var updatedAt string
		if err := rows.Scan(&record.DocumentKey, &record.TotalSeconds, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		record.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) SaveSettings(ctx context.Context, settings model.Settings, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(id, t_limit_minutes, user_bias, implicit_trust_enabled, updated_at)
VALUES(1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	t_limit_minutes = excluded.t_limit_minutes,
	user_bias = excluded.user_bias,
	implicit_trust_enabled = excluded.implicit_trust_enabled,
	updated_at = excluded.updated_at`,
		settings.TLimitMinutes, settings.UserBias, boolToInt(settings.ImplicitTrustEnabled),
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) LoadSettings(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()
	var implicitTrust int
	err := s.db.QueryRowContext(ctx, `
SELECT t_limit_minutes, user_bias, implicit_trust_enabled FROM settings WHERE id = 1`).
		Scan(&settings.TLimitMinutes, &settings.UserBias, &implicitTrust)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	settings.ImplicitTrustEnabled = implicitTrust != 0
	return settings, nil
}

// SaveProfile stores the profile snapshot as a single JSON document.
func (s *Store) SaveProfile(ctx context.Context, snap profile.Snapshot, now time.Time) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO profile(id, data, updated_at) VALUES(1, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadProfile returns the stored snapshot, or a zero snapshot with no
// error when none has been saved yet. A corrupt blob is treated as
// absent rather than fatal; the profile relearns instead of the daemon
// refusing to start.
func (s *Store) LoadProfile(ctx context.Context) (profile.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profile WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Snapshot{}, nil
	}
	if err != nil {
		return profile.Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	var snap profile.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return profile.Snapshot{}, nil
	}
	return snap, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

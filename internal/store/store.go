// Package store persists recorded timelines in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/timeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS recording_segments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('track', 'silence')),
	session_start_ms INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	track_id TEXT,
	track_start_ms INTEGER,
	track_end_ms INTEGER,
	UNIQUE(recording_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_recording_segments_recording ON recording_segments(recording_id);
`

// Recording is a saved session.
type Recording struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Segments  int
	Duration  time.Duration

	// Timeline is only populated by Get.
	Timeline timeline.Timeline
}

// Store reads and writes recordings.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// DefaultPath returns the default database path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "rewind", "recordings.db")
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps in-memory databases and pragmas consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores tl under a new id.
func (s *Store) Save(ctx context.Context, name string, tl timeline.Timeline) (*Recording, error) {
	now := s.clock.Now()
	rec := &Recording{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Segments:  len(tl),
		Duration:  tl.Duration(),
		Timeline:  tl.Clone(),
	}
	if rec.Name == "" {
		rec.Name = "Recording " + now.Format("2006-01-02 15:04")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, now.UnixMilli(), now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recording_segments
			(recording_id, seq, type, session_start_ms, duration_ms, track_id, track_start_ms, track_end_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for i, seg := range tl {
		var trackID sql.NullString
		var trackStart, trackEnd sql.NullInt64
		if seg.IsTrack() {
			trackID = sql.NullString{String: seg.TrackID, Valid: true}
			trackStart = sql.NullInt64{Int64: seg.TrackStartMs, Valid: true}
			trackEnd = sql.NullInt64{Int64: seg.TrackEndMs, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, i, string(seg.Kind),
			seg.SessionStartMs, seg.DurationMs, trackID, trackStart, trackEnd); err != nil {
			return nil, fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Get returns the recording with the given id or unique id prefix,
// including its timeline.
func (s *Store) Get(ctx context.Context, id string) (*Recording, error) {
	fullID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM recordings WHERE id = ?`, fullID)

	var rec Recording
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.ID, &rec.Name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rwerrors.ErrRecordingMissing
		}
		return nil, fmt.Errorf("scan recording: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, session_start_ms, duration_ms, track_id, track_start_ms, track_end_ms
		FROM recording_segments
		WHERE recording_id = ?
		ORDER BY seq ASC`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	rec.Timeline = timeline.Timeline{}
	for rows.Next() {
		var seg timeline.Segment
		var kind string
		var trackID sql.NullString
		var trackStart, trackEnd sql.NullInt64
		if err := rows.Scan(&kind, &seg.SessionStartMs, &seg.DurationMs, &trackID, &trackStart, &trackEnd); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Kind = timeline.Kind(kind)
		seg.TrackID = trackID.String
		seg.TrackStartMs = trackStart.Int64
		seg.TrackEndMs = trackEnd.Int64
		rec.Timeline = append(rec.Timeline, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rec.Segments = len(rec.Timeline)
	rec.Duration = rec.Timeline.Duration()
	return &rec, nil
}

// List returns all recordings, newest first, without their timelines.
func (s *Store) List(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at, r.updated_at,
			COUNT(g.id), COALESCE(MAX(g.session_start_ms + g.duration_ms), 0)
		FROM recordings r
		LEFT JOIN recording_segments g ON g.recording_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var rec Recording
		var createdAt, updatedAt, durationMs int64
		if err := rows.Scan(&rec.ID, &rec.Name, &createdAt, &updatedAt, &rec.Segments, &durationMs); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		rec.UpdatedAt = time.UnixMilli(updatedAt)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Rename changes a recording's name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	fullID, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recordings SET name = ?, updated_at = ? WHERE id = ?`,
		name, s.clock.Now().UnixMilli(), fullID)
	if err != nil {
		return fmt.Errorf("rename recording: %w", err)
	}
	return nil
}

// Delete removes a recording and its segments.
func (s *Store) Delete(ctx context.Context, id string) error {
	fullID, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

// resolve expands a unique id prefix to the full id.
func (s *Store) resolve(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", rwerrors.ErrRecordingMissing
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM recordings WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return "", fmt.Errorf("query recording id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var got string
		if err := rows.Scan(&got); err != nil {
			return "", fmt.Errorf("scan recording id: %w", err)
		}
		if got == id {
			return got, nil
		}
		ids = append(ids, got)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", rwerrors.ErrRecordingMissing, id)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("recording id %q is ambiguous", id)
	}
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

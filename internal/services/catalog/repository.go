package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sentinel-worker-go/internal/models"
)

// Repository stores finished segments
type Repository interface {
	Add(ctx context.Context, seg models.Segment) error
	Get(ctx context.Context, id string) (models.Segment, error)
	ListByDevice(ctx context.Context, deviceIndex, limit int) ([]models.Segment, error)
	Count(ctx context.Context, deviceIndex int) (int, error)
}

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens the catalog database file in WAL mode
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	// one writer goroutine, a few HTTP readers
	db.SetMaxOpenConns(4)
	return db, nil
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	createSegmentsTable := `
	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		device_index INTEGER NOT NULL,
		device_name TEXT NOT NULL,
		path TEXT NOT NULL,
		encoder TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		frames INTEGER NOT NULL,
		reason TEXT NOT NULL,
		codec TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		duration_seconds REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_segments_device ON segments (device_index, started_at);`

	_, err := r.db.Exec(createSegmentsTable)
	return err
}

const segmentColumns = `id, device_index, device_name, path, encoder, width, height,
	started_at, ended_at, frames, reason, codec, format, duration_seconds`

func (r *SQLiteRepository) Add(ctx context.Context, seg models.Segment) error {
	query := `INSERT INTO segments (` + segmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		seg.ID, seg.DeviceIndex, seg.DeviceName, seg.Path, seg.Encoder, seg.Width, seg.Height,
		timeToString(seg.StartedAt), timeToString(seg.EndedAt), seg.Frames, string(seg.Reason),
		seg.Codec, seg.Format, seg.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to add segment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (models.Segment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	}
	return seg, err
}

// ListByDevice returns the newest segments of a device first
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceIndex, limit int) ([]models.Segment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE device_index = ? ORDER BY started_at DESC LIMIT ?`,
		deviceIndex, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []models.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context, deviceIndex int) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments WHERE device_index = ?`, deviceIndex).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSegment(s scanner) (models.Segment, error) {
	var (
		seg            models.Segment
		started, ended string
		reason         string
	)
	err := s.Scan(
		&seg.ID, &seg.DeviceIndex, &seg.DeviceName, &seg.Path, &seg.Encoder, &seg.Width, &seg.Height,
		&started, &ended, &seg.Frames, &reason, &seg.Codec, &seg.Format, &seg.DurationSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return seg, err
		}
		return seg, fmt.Errorf("failed to scan segment: %w", err)
	}
	seg.Reason = models.CloseReason(reason)

	if seg.StartedAt, err = stringToTime(started); err != nil {
		return seg, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if seg.EndedAt, err = stringToTime(ended); err != nil {
		return seg, fmt.Errorf("failed to parse ended_at: %w", err)
	}
	return seg, nil
}

// timeLayout is fixed width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func stringToTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

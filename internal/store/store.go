// Package store provides the SQLite-backed journal of the coach service. It
// records every answered exchange and the feedback users leave on answers so
// both survive restarts and can be reviewed offline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Exchange is one answered question.
type Exchange struct {
	// ID is a random UUID assigned on insert.
	ID string
	// Model is the family id that served the question.
	Model string
	// Source is "model" or "fallback".
	Source string
	// FallbackReason is empty for model answers.
	FallbackReason string
	// Question is the user's question.
	Question string
	// Response is the final answer text.
	Response string
	// ContextUsed reports whether documents were placed in the prompt.
	ContextUsed bool
	// Latency is the pipeline latency.
	Latency time.Duration
	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time
}

// Feedback is a user's rating of an answer.
type Feedback struct {
	// ID is "fb_" followed by a random UUID, assigned on insert.
	ID string
	// Rating is 1..5.
	Rating int
	// Comment is optional free text.
	Comment string
	// Question is the question the feedback refers to, if known.
	Question string
	// Helpful is nil when the user did not say.
	Helpful *bool
	// ModelUsed is the family id that produced the rated answer, if known.
	ModelUsed string
	// CreatedAt is when the feedback was persisted.
	CreatedAt time.Time
}

// FeedbackSummary aggregates all feedback.
type FeedbackSummary struct {
	// Count is the number of feedback rows.
	Count int `json:"count"`
	// AvgRating is the mean rating, 0 when Count is 0.
	AvgRating float64 `json:"avg_rating"`
}

// Journal persists exchanges and feedback. Implementations must be safe for
// concurrent use.
type Journal interface {
	// RecordExchange persists e and returns its assigned id.
	RecordExchange(ctx context.Context, e Exchange) (string, error)
	// RecentExchanges returns the most recent n exchanges, newest first.
	RecentExchanges(ctx context.Context, n int) ([]Exchange, error)
	// SaveFeedback persists f and returns its assigned id.
	SaveFeedback(ctx context.Context, f Feedback) (string, error)
	// FeedbackSummary aggregates all stored feedback.
	FeedbackSummary(ctx context.Context) (FeedbackSummary, error)
	// Close releases any resources held by the journal.
	Close() error
}

// SQLiteJournal is a Journal backed by a local SQLite database.
type SQLiteJournal struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now stamps rows; replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns the default path for the journal database.
// It resolves to ~/.fitcoach/journal.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".fitcoach")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "journal.db"), nil
}

// Open opens (or creates) a SQLiteJournal at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteJournal, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent
	// writes. This also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// migrate creates the schema if it does not already exist.
func (j *SQLiteJournal) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS exchanges (
    id              TEXT    PRIMARY KEY,
    model           TEXT    NOT NULL,
    source          TEXT    NOT NULL CHECK(source IN ('model','fallback')),
    fallback_reason TEXT    NOT NULL DEFAULT '',
    question        TEXT    NOT NULL,
    response        TEXT    NOT NULL,
    context_used    INTEGER NOT NULL,
    latency_ms      INTEGER NOT NULL,
    created_at      INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges (created_at);

CREATE TABLE IF NOT EXISTS feedback (
    id               TEXT    PRIMARY KEY,
    rating           INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
    comment          TEXT    NOT NULL DEFAULT '',
    question         TEXT    NOT NULL DEFAULT '',
    response_helpful INTEGER,            -- NULL when not provided
    model_used       TEXT    NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL    -- Unix timestamp (milliseconds)
);
`
	if _, err := j.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordExchange persists e and returns its assigned id.
func (j *SQLiteJournal) RecordExchange(ctx context.Context, e Exchange) (string, error) {
	const q = `
INSERT INTO exchanges (id, model, source, fallback_reason, question, response, context_used, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx, q,
		id, e.Model, e.Source, e.FallbackReason, e.Question, e.Response,
		e.ContextUsed, e.Latency.Milliseconds(), j.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("store: record exchange: %w", err)
	}
	return id, nil
}

// RecentExchanges returns the most recent n exchanges, newest first.
func (j *SQLiteJournal) RecentExchanges(ctx context.Context, n int) ([]Exchange, error) {
	const q = `
SELECT id, model, source, fallback_reason, question, response, context_used, latency_ms, created_at
FROM   exchanges
ORDER  BY created_at DESC, rowid DESC
LIMIT  ?`

	rows, err := j.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var latency, ts int64
		if err := rows.Scan(&e.ID, &e.Model, &e.Source, &e.FallbackReason, &e.Question, &e.Response, &e.ContextUsed, &latency, &ts); err != nil {
			return nil, fmt.Errorf("store: recent exchanges scan: %w", err)
		}
		e.Latency = time.Duration(latency) * time.Millisecond
		e.CreatedAt = time.UnixMilli(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent exchanges rows: %w", err)
	}
	return out, nil
}

// SaveFeedback persists f and returns its assigned id.
func (j *SQLiteJournal) SaveFeedback(ctx context.Context, f Feedback) (string, error) {
	if f.Rating < 1 || f.Rating > 5 {
		return "", fmt.Errorf("store: save feedback: rating must be 1..5, got %d", f.Rating)
	}
	const q = `
INSERT INTO feedback (id, rating, comment, question, response_helpful, model_used, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	var helpful sql.NullBool
	if f.Helpful != nil {
		helpful = sql.NullBool{Bool: *f.Helpful, Valid: true}
	}
	id := "fb_" + uuid.NewString()
	_, err := j.db.ExecContext(ctx, q, id, f.Rating, f.Comment, f.Question, helpful, f.ModelUsed, j.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("store: save feedback: %w", err)
	}
	return id, nil
}

// Feedback returns the feedback row with the given id.
func (j *SQLiteJournal) Feedback(ctx context.Context, id string) (Feedback, error) {
	const q = `
SELECT id, rating, comment, question, response_helpful, model_used, created_at
FROM   feedback WHERE id = ?`
	var f Feedback
	var helpful sql.NullBool
	var ts int64
	err := j.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.Rating, &f.Comment, &f.Question, &helpful, &f.ModelUsed, &ts)
	if err != nil {
		return Feedback{}, fmt.Errorf("store: feedback %s: %w", id, err)
	}
	if helpful.Valid {
		v := helpful.Bool
		f.Helpful = &v
	}
	f.CreatedAt = time.UnixMilli(ts)
	return f, nil
}

// FeedbackSummary aggregates all stored feedback.
func (j *SQLiteJournal) FeedbackSummary(ctx context.Context) (FeedbackSummary, error) {
	const q = `SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback`
	var s FeedbackSummary
	if err := j.db.QueryRowContext(ctx, q).Scan(&s.Count, &s.AvgRating); err != nil {
		return FeedbackSummary{}, fmt.Errorf("store: feedback summary: %w", err)
	}
	return s, nil
}

// Ping verifies the database is reachable. It makes the journal usable as a
// readiness probe.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Name identifies the journal in readiness reports.
func (j *SQLiteJournal) Name() string { return "journal" }

// Close releases the database connection pool.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository persists dispatch tasks in an embedded sqlite database.
type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	Enqueue(ctx context.Context, idempotencyKey, kind string, payload json.RawMessage, maxAttempts int) (bool, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Close() error
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// Enqueue inserts a pending task due immediately. A task with the same
// idempotency key already present leaves the table untouched; the
// return value reports whether a row was inserted.
func (r *Repository) Enqueue(ctx context.Context, idempotencyKey, kind string, payload json.RawMessage, maxAttempts int) (bool, error) {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_tasks
			(id, idempotency_key, kind, payload, status, attempts, max_attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING
	`, uuid.New().String(), idempotencyKey, kind, string(payload), StatusPending, maxAttempts, now, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue task: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return inserted > 0, nil
}

// Due returns pending tasks whose next attempt time has passed,
// oldest first.
func (r *Repository) Due(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, idempotency_key, kind, payload, status, attempts, max_attempts,
		       next_attempt_at, last_error, created_at, updated_at
		FROM dispatch_tasks
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at
		LIMIT ?
	`, StatusPending, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		var payload string
		var nextAttempt, createdAt, updatedAt int64
		err := rows.Scan(
			&t.ID,
			&t.IdempotencyKey,
			&t.Kind,
			&payload,
			&t.Status,
			&t.Attempts,
			&t.MaxAttempts,
			&nextAttempt,
			&t.LastError,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Payload = json.RawMessage(payload)
		t.NextAttemptAt = time.Unix(nextAttempt, 0)
		t.CreatedAt = time.Unix(createdAt, 0)
		t.UpdatedAt = time.Unix(updatedAt, 0)
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tasks, nil
}

func (r *Repository) MarkDone(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, StatusDone, "")
}

func (r *Repository) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.setStatus(ctx, id, StatusFailed, lastError)
}

func (r *Repository) setStatus(ctx context.Context, id string, status TaskStatus, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_tasks
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, status, lastError, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// Reschedule records a failed attempt and the time of the next one.
func (r *Repository) Reschedule(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_tasks
		SET attempts = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, attempts, nextAttempt.Unix(), lastError, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", id, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

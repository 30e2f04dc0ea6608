package dispatch

import (
	"encoding/json"
	"time"
)

// TaskStatus tracks a task through its delivery attempts.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusDone    TaskStatus = "done"
	StatusFailed  TaskStatus = "failed"
)

// Task is one deliverable side effect of a confirmed order: a
// notification email or an inventory update. The idempotency key
// (transaction id + kind) makes enqueueing the same effect twice a
// no-op, so redelivery can't double-send or double-decrement.
type Task struct {
	ID             string
	IdempotencyKey string
	Kind           string
	Payload        json.RawMessage
	Status         TaskStatus
	Attempts       int
	MaxAttempts    int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

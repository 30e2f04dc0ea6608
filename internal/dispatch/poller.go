package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler delivers one task payload. A returned error reschedules the
// task until its attempt budget runs out.
type Handler func(ctx context.Context, payload json.RawMessage) error

const (
	// DefaultMaxAttempts is the delivery budget for a task.
	DefaultMaxAttempts = 5

	defaultTick      = time.Second
	defaultBaseDelay = 5 * time.Second
	defaultBatchSize = 100
)

// Poller drains due tasks and hands them to per-kind handlers.
// Delivery is at-least-once; handlers are expected to be idempotent
// and the unique idempotency key keeps enqueueing idempotent too.
type Poller struct {
	repo      RepoInterface
	handlers  map[string]Handler
	tick      time.Duration
	baseDelay time.Duration
	batchSize int
}

func NewPoller(repo RepoInterface) *Poller {
	return &Poller{
		repo:      repo,
		handlers:  make(map[string]Handler),
		tick:      defaultTick,
		baseDelay: defaultBaseDelay,
		batchSize: defaultBatchSize,
	}
}

// Register binds a handler to a task kind. Must be called before Run.
func (p *Poller) Register(kind string, handler Handler) {
	p.handlers[kind] = handler
}

// SetTick overrides the drain interval. Must be called before Run.
func (p *Poller) SetTick(d time.Duration) {
	if d > 0 {
		p.tick = d
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ProcessDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs one drain cycle. Exposed so tests and shutdown paths
// can drive the poller without the ticker.
func (p *Poller) ProcessDue(ctx context.Context) {
	tasks, err := p.repo.Due(ctx, time.Now(), p.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch due tasks")
		return
	}

	for _, task := range tasks {
		p.deliver(ctx, task)
	}
}

func (p *Poller) deliver(ctx context.Context, task *Task) {
	handler, ok := p.handlers[task.Kind]
	if !ok {
		log.Error().Str("kind", task.Kind).Str("task_id", task.ID).Msg("no handler for task kind")
		if err := p.repo.MarkFailed(ctx, task.ID, "no handler registered"); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task failed")
		}
		return
	}

	errDeliver := handler(ctx, task.Payload)
	if errDeliver == nil {
		if err := p.repo.MarkDone(ctx, task.ID); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task done")
		}
		return
	}

	attempts := task.Attempts + 1
	if attempts >= task.MaxAttempts {
		log.Error().Err(errDeliver).
			Str("task_id", task.ID).
			Str("kind", task.Kind).
			Int("attempts", attempts).
			Msg("task exhausted its attempt budget")
		if err := p.repo.MarkFailed(ctx, task.ID, errDeliver.Error()); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task failed")
		}
		return
	}

	// delay doubles with each failed attempt
	delay := p.baseDelay << (attempts - 1)
	log.Warn().Err(errDeliver).
		Str("task_id", task.ID).
		Str("kind", task.Kind).
		Int("attempt", attempts).
		Dur("retry_in", delay).
		Msg("task delivery failed, rescheduling")

	if err := p.repo.Reschedule(ctx, task.ID, attempts, time.Now().Add(delay), errDeliver.Error()); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("failed to reschedule task")
	}
}

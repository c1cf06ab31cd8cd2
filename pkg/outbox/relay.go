package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/metrics"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

// Message is what the relay hands to a Publisher.
type Message struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
	RequestID     string
	OccurredAt    time.Time
	Payload       []byte
}

// Publisher forwards one outbox message to the event transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type RelayParams struct {
	DB             txRunner
	Repo           *Repository
	Registry       *DecoderRegistry
	Publisher      Publisher
	Logger         *logger.Logger
	Metrics        *metrics.OutboxMetrics
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
	Clock          func() time.Time
}

// Relay polls unpublished outbox rows and forwards them in commit order. A row is marked
// published in the same transaction that locked it, so a crash re-sends at most one batch.
type Relay struct {
	db             txRunner
	repo           *Repository
	registry       *DecoderRegistry
	publisher      Publisher
	logg           *logger.Logger
	metrics        *metrics.OutboxMetrics
	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	clock          func() time.Time
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Repo == nil:
		return nil, errors.New("outbox repository is required")
	case params.Publisher == nil:
		return nil, errors.New("publisher is required")
	}
	r := &Relay{
		db:             params.DB,
		repo:           params.Repo,
		registry:       params.Registry,
		publisher:      params.Publisher,
		logg:           params.Logger,
		metrics:        params.Metrics,
		batchSize:      orDefault(params.BatchSize, defaultBatchSize),
		maxAttempts:    orDefault(params.MaxAttempts, defaultMaxAttempts),
		pollInterval:   orDefault(params.PollInterval, defaultPollInterval),
		publishTimeout: orDefault(params.PublishTimeout, defaultPublishTimeout),
		clock:          params.Clock,
	}
	if r.registry == nil {
		r.registry = NewReceivingRegistry()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r, nil
}

// Run processes batches until ctx is canceled. Full batches are followed immediately by the
// next one; empty batches wait one poll interval; batch errors back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.ProcessBatch(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox.relay.batch_failed", err)
			backoff = min(backoff*2, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.pollInterval

		if n >= r.batchSize {
			continue
		}
		if err := sleep(ctx, withJitter(r.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch publishes one batch and returns how many rows it handled.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchPending(tx.WithContext(ctx), r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch pending events: %w", err)
		}
		if len(events) == 0 {
			return r.refreshStuck(tx)
		}
		r.metrics.IncBatch()
		for _, event := range events {
			if err := r.relay(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

// refreshStuck runs on idle polls only.
func (r *Relay) refreshStuck(tx *gorm.DB) error {
	if r.metrics == nil {
		return nil
	}
	n, err := NewRepository(tx).CountStuck(r.maxAttempts)
	if err != nil {
		return fmt.Errorf("count stuck events: %w", err)
	}
	r.metrics.SetStuck(n)
	return nil
}

func (r *Relay) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	envelope, _, err := r.registry.DecodeEvent(event)
	if err != nil {
		return r.fail(ctx, tx, event, r.maxAttempts, fmt.Errorf("undecodable event: %w", err))
	}

	msg := Message{
		EventID:       envelope.EventID,
		EventType:     string(event.EventType),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID.String(),
		OccurredAt:    event.OccurredAt,
		Payload:       event.Payload,
	}
	if event.RequestID != nil {
		msg.RequestID = *event.RequestID
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	err = r.publisher.Publish(publishCtx, msg)
	cancel()
	if err != nil {
		return r.fail(ctx, tx, event, event.AttemptCount+1, err)
	}

	now := r.clock().UTC()
	if err := r.repo.MarkPublished(tx, event.ID, now); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	r.metrics.ObservePublished(string(event.EventType), event.OccurredAt, now)
	r.logg.Debug(ctx, "outbox.relay.published")
	return nil
}

func (r *Relay) fail(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, attempts int, cause error) error {
	terminal := attempts >= r.maxAttempts
	if err := r.repo.MarkFailed(tx, event.ID, attempts, cause); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	r.metrics.IncFailed(string(event.EventType), terminal)

	ctx = r.logg.WithFields(ctx, map[string]any{"error": cause.Error(), "terminal": terminal})
	if terminal {
		r.logg.Error(ctx, "outbox.relay.gave_up", cause)
		return nil
	}
	r.logg.Warn(ctx, "outbox.relay.publish_failed")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

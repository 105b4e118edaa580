package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/resolver"
	"github.com/n2nstreams/saasfactory-cloud/internal/usecase/promote"
)

// Enqueue persists a promotion trigger as a pending outbox event. The HTTP
// handler acknowledges the trigger as soon as this commits; the processor
// picks it up asynchronously.
func Enqueue(ctx context.Context, db *gorm.DB, raw promotion.RawTrigger) (int64, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return 0, fmt.Errorf("marshal trigger payload: %w", err)
	}

	event := Event{
		EventType:  EventTypePromoteTenant,
		TenantSlug: resolver.Resolve(raw, 0).TenantSlug,
		Payload:    string(payload),
		Status:     StatusPending,
	}
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return 0, fmt.Errorf("enqueue outbox event: %w", err)
	}
	return event.ID, nil
}

type Processor struct {
	db           *gorm.DB
	orchestrator *promote.Orchestrator
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

func NewProcessor(db *gorm.DB, orchestrator *promote.Orchestrator, logger *zap.Logger) *Processor {
	return &Processor{
		db:           db,
		orchestrator: orchestrator,
		logger:       logger.Named("outbox"),
		pollInterval: 5 * time.Second,
		batchSize:    5,
		maxAttempts:  10,
	}
}

// Run polls the outbox so promotion runs happen after durable writes,
// keeping DB state authoritative.
func (p *Processor) Run(ctx context.Context) {
	if err := p.processBatch(ctx); err != nil {
		p.logger.Error("outbox_initial_poll_failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("outbox_poll_failed", zap.Error(err))
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) error {
	events, err := p.fetchAndLockPending(ctx)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error("outbox_event_processing_failed",
				zap.Error(err),
				zap.Int64("event_id", event.ID),
				zap.String("event_type", string(event.EventType)),
			)
		}
	}

	return nil
}

func (p *Processor) fetchAndLockPending(ctx context.Context) ([]Event, error) {
	var events []Event
	now := time.Now().UTC()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT * FROM outbox_events
			 WHERE status IN (?, ?)
			   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			   AND attempts < ?
			 ORDER BY created_at ASC
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			StatusPending,
			StatusFailed,
			now,
			p.maxAttempts,
			p.batchSize,
		).Scan(&events).Error; err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(events))
		for i := range events {
			ids = append(ids, events[i].ID)
			events[i].Attempts++
		}

		return tx.Model(&Event{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     StatusProcessing,
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
				"last_error": nil,
			}).Error
	})

	return events, err
}

func (p *Processor) processEvent(ctx context.Context, event Event) error {
	switch event.EventType {
	case EventTypePromoteTenant:
		return p.handlePromoteTenant(ctx, event)
	default:
		return p.markEventFailed(ctx, event, fmt.Errorf("unsupported event type: %s", event.EventType))
	}
}

func (p *Processor) handlePromoteTenant(ctx context.Context, event Event) error {
	var raw promotion.RawTrigger
	if err := json.Unmarshal([]byte(event.Payload), &raw); err != nil {
		return p.markEventFailed(ctx, event, fmt.Errorf("decode trigger payload: %w", err))
	}

	out, err := p.orchestrator.Run(ctx, raw)
	if out == nil {
		// No tenant state was touched, so retrying this event is safe.
		return p.markEventFailed(ctx, event, err)
	}
	if err != nil {
		// The run reached a terminal outcome but reporting it was
		// incomplete. Re-running would restart a promotion whose tenant
		// state is already written, so the event still completes.
		p.logger.Error("outbox_promotion_report_incomplete",
			zap.Error(err),
			zap.Int64("event_id", event.ID),
			zap.Int64("run_id", out.RunID),
			zap.String("tenant", out.Request.TenantSlug),
		)
	}

	// A terminal outcome, including a failed promotion, is a processed
	// event: the run recorded its audit record and reported its status.
	// No automatic retry happens once a run has started.
	p.logger.Info("outbox_promotion_completed",
		zap.Int64("event_id", event.ID),
		zap.Int64("run_id", out.RunID),
		zap.String("tenant", out.Request.TenantSlug),
		zap.String("final_state", string(out.FinalState)),
	)
	return p.markEventCompleted(ctx, event.ID)
}

func (p *Processor) markEventCompleted(ctx context.Context, eventID int64) error {
	now := time.Now().UTC()
	return p.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", eventID, StatusProcessing).
		Updates(map[string]any{
			"status":       StatusCompleted,
			"processed_at": now,
			"updated_at":   now,
			"last_error":   nil,
		}).Error
}

func (p *Processor) markEventFailed(ctx context.Context, event Event, err error) error {
	if err == nil {
		return nil
	}

	now := time.Now().UTC()
	nextAttempt := now.Add(backoffDuration(event.Attempts))

	updateErr := p.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":          StatusFailed,
			"last_error":      err.Error(),
			"next_attempt_at": nextAttempt,
			"updated_at":      now,
		}).Error
	if updateErr != nil {
		return fmt.Errorf("mark event failed: %w (original error: %v)", updateErr, err)
	}
	return err
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 10 * time.Second
	}

	maxBackoff := 5 * time.Minute
	base := 10 * time.Second
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}

	d := base * time.Duration(1<<shift)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

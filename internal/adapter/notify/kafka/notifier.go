// Package kafka publishes promotion outcomes to a Kafka topic so downstream
// consumers (billing, support tooling) observe isolation changes.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

type Config struct {
	Brokers []string
	Topic   string

	// MaxAttempts caps produce retries on transient errors.
	MaxAttempts int

	WriteTimeout time.Duration
}

// Notifier publishes each outcome keyed by tenant slug so all events for a
// tenant land on one partition and stay ordered.
type Notifier struct {
	writer      *kafka.Writer
	maxAttempts int
}

func NewNotifier(cfg Config) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &Notifier{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

func (n *Notifier) ReportOutcome(ctx context.Context, out *promotion.Outcome) error {
	value, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(out.Request.TenantSlug),
		Value: value,
		Time:  time.Now().UTC(),
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := n.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	return fmt.Errorf("produce failed after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *Notifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

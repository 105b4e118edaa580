// Package webhook delivers promotion outcomes to the trigger mechanism's
// callback endpoint, typically a workflow status hook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

type Config struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	RateLimit  int
	RateBurst  int
}

func DefaultConfig(url, token string) Config {
	return Config{
		URL:        url,
		Token:      token,
		Timeout:    10 * time.Second,
		RetryCount: 3,
		RetryDelay: time.Second,
		RateLimit:  60,
		RateBurst:  5,
	}
}

// Notifier posts outcome payloads over HTTP. Delivery is best effort: the
// reporter logs failures without failing the run, so the breaker keeps a
// flaky endpoint from stalling promotions.
type Notifier struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewNotifier(cfg Config) *Notifier {
	settings := gobreaker.Settings{
		Name:    "promotion-webhook",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures >= 5
		},
	}

	return &Notifier{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit)/60, cfg.RateBurst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

type payload struct {
	RunID      string `json:"run_id"`
	TenantSlug string `json:"tenant_slug"`
	FinalState string `json:"final_state"`
	Reason     string `json:"reason,omitempty"`
	Summary    string `json:"summary"`

	Outcome *promotion.Outcome `json:"outcome"`
}

func (n *Notifier) ReportOutcome(ctx context.Context, out *promotion.Outcome) error {
	body := payload{
		RunID:      fmt.Sprintf("%d", out.RunID),
		TenantSlug: out.Request.TenantSlug,
		FinalState: string(out.FinalState),
		Reason:     string(out.Reason),
		Summary:    out.Summary(),
		Outcome:    out,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal outcome payload: %w", err)
	}

	var lastErr error
	for i := 0; i <= n.cfg.RetryCount; i++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		_, lastErr = n.breaker.Execute(func() (any, error) {
			return nil, n.post(ctx, b)
		})
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.cfg.RetryDelay * time.Duration(i+1)):
		}
	}
	return lastErr
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook error: %s: %s", resp.Status, string(b))
	}
	return nil
}

// Package httpprobe exercises a freshly promoted deployment over its public
// endpoint: tenant-scoped reads, a write-then-read round trip, and a
// cross-tenant isolation check.
package httpprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/n2nstreams/saasfactory-cloud/pkg/tenantauth"
)

type Config struct {
	// RootDomain is the apex under which tenant endpoints live, e.g.
	// "factory.example.com" for https://<slug>.factory.example.com.
	RootDomain string
	RootScheme string

	// JWTMasterKey signs per-tenant service tokens.
	JWTMasterKey string

	Timeout time.Duration
}

type Probe struct {
	cfg  Config
	http *http.Client

	mintToken func(masterKey, slug string, ttl time.Duration) (string, error)
}

func NewProbe(cfg Config) *Probe {
	if cfg.RootScheme == "" {
		cfg.RootScheme = "https"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Probe{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		mintToken: tenantauth.MintServiceToken,
	}
}

func (p *Probe) CheckRead(ctx context.Context, tenantSlug string) error {
	resp, err := p.do(ctx, http.MethodGet, tenantSlug, tenantSlug, "/api/projects", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("read probe: unexpected status %s", resp.Status)
	}
	return nil
}

// CheckWriteRead inserts a probe record through the deployment's API and
// reads it back, confirming both paths hit the dedicated store.
func (p *Probe) CheckWriteRead(ctx context.Context, tenantSlug string) error {
	marker := "probe-" + ulid.Make().String()

	body, err := json.Marshal(map[string]string{
		"actor":  "control-plane",
		"action": "promotion_probe",
		"detail": marker,
	})
	if err != nil {
		return fmt.Errorf("write probe: marshal: %w", err)
	}

	resp, err := p.do(ctx, http.MethodPost, tenantSlug, tenantSlug, "/api/audit-logs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("write probe: unexpected status %s", resp.Status)
	}

	resp, err = p.do(ctx, http.MethodGet, tenantSlug, tenantSlug, "/api/audit-logs?detail="+marker, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("read-back probe: unexpected status %s", resp.Status)
	}

	found, err := bodyContains(resp.Body, marker)
	if err != nil {
		return fmt.Errorf("read-back probe: %w", err)
	}
	if !found {
		return fmt.Errorf("read-back probe: record %s not visible after write", marker)
	}
	return nil
}

// CheckIsolation asserts isolation in both directions: the deployment
// rejects a token minted for another tenant, and a legitimate request
// cannot surface that other tenant's data from the dedicated store.
func (p *Probe) CheckIsolation(ctx context.Context, tenantSlug, otherSlug string) error {
	resp, err := p.do(ctx, http.MethodGet, tenantSlug, otherSlug, "/api/projects", nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return fmt.Errorf("isolation probe: foreign credentials accepted with status %s", resp.Status)
	}

	resp, err = p.do(ctx, http.MethodGet, tenantSlug, tenantSlug, "/api/projects?tenant="+otherSlug, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		leaked, err := bodyContains(resp.Body, otherSlug)
		if err != nil {
			return fmt.Errorf("isolation probe: %w", err)
		}
		if leaked {
			return fmt.Errorf("isolation probe: foreign tenant %s data visible in dedicated store", otherSlug)
		}
		return nil
	case http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("isolation probe: unexpected status %s querying foreign data", resp.Status)
	}
}

// do issues a request against tenantSlug's endpoint using a token minted
// for tokenSlug. The two differ only for the isolation check.
func (p *Probe) do(ctx context.Context, method, tenantSlug, tokenSlug, path string, body io.Reader) (*http.Response, error) {
	token, err := p.mintToken(p.cfg.JWTMasterKey, tokenSlug, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("mint probe token: %w", err)
	}

	url := fmt.Sprintf("%s://%s.%s%s", p.cfg.RootScheme, tenantSlug, p.cfg.RootDomain, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request %s: %w", path, err)
	}
	return resp, nil
}

func bodyContains(r io.Reader, marker string) (bool, error) {
	b, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return false, err
	}
	return bytes.Contains(b, []byte(marker)), nil
}

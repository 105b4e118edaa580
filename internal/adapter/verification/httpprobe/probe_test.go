package httpprobe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func testProbe(t *testing.T, rt roundTripperFunc) *Probe {
	t.Helper()
	p := NewProbe(Config{
		RootDomain:   "factory.example.com",
		RootScheme:   "https",
		JWTMasterKey: "test-master-key",
	})
	p.http.Transport = rt
	return p
}

func response(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestCheckRead_HitsTenantEndpoint(t *testing.T) {
	var gotHost, gotPath string
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		gotHost = req.URL.Host
		gotPath = req.URL.Path
		assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer "))
		return response(req, http.StatusOK, `{"projects":[]}`), nil
	})

	require.NoError(t, p.CheckRead(context.Background(), "acme-corp"))
	assert.Equal(t, "acme-corp.factory.example.com", gotHost)
	assert.Equal(t, "/api/projects", gotPath)
}

func TestCheckIsolation_BothDirectionsHold(t *testing.T) {
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		// The foreign-token request carries no query; the foreign-data
		// request queries for the canary tenant.
		if req.URL.RawQuery == "" {
			return response(req, http.StatusUnauthorized, ""), nil
		}
		assert.Equal(t, "tenant=isolation-canary", req.URL.RawQuery)
		return response(req, http.StatusOK, `{"projects":[]}`), nil
	})

	require.NoError(t, p.CheckIsolation(context.Background(), "acme-corp", "isolation-canary"))
}

func TestCheckIsolation_ForeignDataNotFoundAlsoPasses(t *testing.T) {
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.RawQuery == "" {
			return response(req, http.StatusForbidden, ""), nil
		}
		return response(req, http.StatusNotFound, ""), nil
	})

	require.NoError(t, p.CheckIsolation(context.Background(), "acme-corp", "isolation-canary"))
}

func TestCheckIsolation_ForeignTokenAccepted(t *testing.T) {
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusOK, `{"projects":[]}`), nil
	})

	err := p.CheckIsolation(context.Background(), "acme-corp", "isolation-canary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign credentials accepted")
}

func TestCheckIsolation_ForeignDataVisible(t *testing.T) {
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.RawQuery == "" {
			return response(req, http.StatusUnauthorized, ""), nil
		}
		body := `{"projects":[{"tenant_slug":"isolation-canary","name":"leaked"}]}`
		return response(req, http.StatusOK, body), nil
	})

	err := p.CheckIsolation(context.Background(), "acme-corp", "isolation-canary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data visible")
}

func TestCheckWriteRead_MarkerRoundTrip(t *testing.T) {
	var marker string
	p := testProbe(t, func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			body := string(raw)
			start := strings.Index(body, "probe-")
			require.GreaterOrEqual(t, start, 0)
			marker = body[start : start+32]
			return response(req, http.StatusCreated, ""), nil
		}
		return response(req, http.StatusOK, `{"audit_logs":[{"detail":"`+marker+`"}]}`), nil
	})

	require.NoError(t, p.CheckWriteRead(context.Background(), "acme-corp"))
}

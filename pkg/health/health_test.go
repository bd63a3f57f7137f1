package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hixichen/client-secret-rotator/pkg/base64url"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type mockStore struct {
	env       map[string]string
	loadErr   error
	healthErr error
}

func (m *mockStore) Load(ctx context.Context) (map[string]string, error) { return m.env, m.loadErr }
func (m *mockStore) Set(ctx context.Context, key, value string) error     { return nil }
func (m *mockStore) HealthCheck(ctx context.Context) error                { return m.healthErr }
func (m *mockStore) Type() iface.StoreType                                { return iface.StoreTypeFile }

// tokenWithExp builds an unsigned token whose claims carry exp.
func tokenWithExp(exp int64) string {
	claims, _ := json.Marshal(map[string]int64{"exp": exp})
	return "eyJhbGciOiJFUzI1NiJ9." + base64url.Encode(claims) + ".c2ln"
}

func TestHealth_RunAll(t *testing.T) {
	h := New(testLogger())
	h.Register("ok", func(ctx context.Context) error { return nil })
	h.Register("degraded", func(ctx context.Context) error { return &DegradedError{Reason: "warming up"} })

	result := h.RunAll(context.Background())
	assert.Equal(t, string(StatusDegraded), result.Status)
	assert.Equal(t, StatusHealthy, result.Checks["ok"].Status)
	assert.Equal(t, "warming up", result.Checks["degraded"].Message)

	h.Register("broken", func(ctx context.Context) error { return errors.New("boom") })
	assert.Equal(t, string(StatusUnhealthy), h.GetResult().Status, "registered checks start unhealthy")

	result = h.RunAll(context.Background())
	assert.Equal(t, string(StatusUnhealthy), result.Status)
	assert.False(t, h.IsHealthy())
}

func TestHealth_Run(t *testing.T) {
	h := New(testLogger())
	h.Register("ok", func(ctx context.Context) error { return nil })

	check, err := h.Run(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, check.Status)
	assert.True(t, h.IsHealthy())

	_, err = h.Run(context.Background(), "missing")
	assert.Error(t, err)
}

func TestHealth_Metrics(t *testing.T) {
	h := New(testLogger())
	m := metrics.New()
	h.SetMetrics(m)
	h.Register("store", func(ctx context.Context) error { return errors.New("down") })
	h.Register("secret", func(ctx context.Context) error { return &DegradedError{Reason: "missing"} })

	h.RunAll(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HealthStatus.WithLabelValues("store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthStatus.WithLabelValues("secret")))
}

func TestSecretChecker(t *testing.T) {
	now := time.Unix(1762470054, 0)
	clock := func() time.Time { return now }
	key := "AUTH_APPLE_CLIENT_SECRET"

	tests := []struct {
		name         string
		store        *mockStore
		wantErr      bool
		wantDegraded bool
	}{
		{name: "valid", store: &mockStore{env: map[string]string{key: tokenWithExp(now.Unix() + 3600)}}},
		{name: "missing", store: &mockStore{env: map[string]string{}}, wantErr: true, wantDegraded: true},
		{name: "undecodable", store: &mockStore{env: map[string]string{key: "garbage"}}, wantErr: true, wantDegraded: true},
		{name: "expired", store: &mockStore{env: map[string]string{key: tokenWithExp(now.Unix())}}, wantErr: true},
		{name: "load error", store: &mockStore{loadErr: errors.New("denied")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SecretChecker(tt.store, key, clock)(context.Background())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var degraded *DegradedError
			assert.Equal(t, tt.wantDegraded, errors.As(err, &degraded))
		})
	}
}

func TestStoreChecker(t *testing.T) {
	assert.NoError(t, StoreChecker(&mockStore{})(context.Background()))
	assert.Error(t, StoreChecker(&mockStore{healthErr: errors.New("no")})(context.Background()))
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))
	m.RecordCheck("still_valid")

	h := New(testLogger())
	var healthy atomic.Bool
	healthy.Store(true)
	h.Register("store", func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("unreachable")
	})

	srv := httptest.NewServer(NewRouter(h, reg))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, _ := get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get("/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"healthy"`)

	healthy.Store(false)
	resp, body = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "unreachable")

	resp, body = get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `client_secret_rotator_checks_total{decision="still_valid"} 1`)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewRouter(New(testLogger()), nil), testLogger()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

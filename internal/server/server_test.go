package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmphub-lab/dmphub/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	return resp
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		store    HealthChecker
		wantCode int
		wantBody string
	}{
		{name: "no store", wantCode: http.StatusOK, wantBody: `"healthy"`},
		{name: "reachable", store: pingFunc(func(context.Context) error { return nil }), wantCode: http.StatusOK, wantBody: `"healthy"`},
		{name: "unreachable", store: pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), wantCode: http.StatusServiceUnavailable, wantBody: `"unhealthy"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", tt.store, nil, "release")
			resp := get(t, s, "/health")
			require.Equal(t, tt.wantCode, resp.Code)
			require.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := New(":0", nil, m, "release")

	require.Equal(t, http.StatusOK, get(t, s, "/health").Code)

	resp := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, strings.Contains(resp.Body.String(), `dmphub_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`),
		resp.Body.String())
}

func TestMetricsEndpoint_DisabledWithoutMetrics(t *testing.T) {
	s := New(":0", nil, nil, "release")
	require.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
}

func TestHealth_ReportsStorageState(t *testing.T) {
	resp := get(t, New(":0", nil, nil, "release"), "/health")
	require.JSONEq(t, `{"status":"healthy","storage":"unchecked"}`, resp.Body.String())

	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })
	resp = get(t, New(":0", down, nil, "release"), "/health")
	require.JSONEq(t, `{"status":"unhealthy","storage":"unreachable"}`, resp.Body.String())
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New("127.0.0.1:0", nil, nil, "release")

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

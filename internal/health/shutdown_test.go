package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andika-pr/backend-otoparts/internal/health"
)

type healthyChecker struct{}

func (healthyChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (healthyChecker) PingRedis(context.Context, time.Duration) error { return nil }

// Draining flips the gate off, so the probe must fail even while the
// dependencies are still reachable.
func TestReadinessGateDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	handler := health.Handler{Checker: healthyChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	before := httptest.NewRecorder()
	handler.Ready(before, req)
	require.Equal(t, http.StatusOK, before.Code)

	health.SetReady(false)
	during := httptest.NewRecorder()
	handler.Ready(during, req)
	require.Equal(t, http.StatusServiceUnavailable, during.Code)
}

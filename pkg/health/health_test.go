package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyEndpoint_GatedOnSetReady(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLiveEndpoint_ReportsFailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	// Checks start healthy; the threshold must be crossed first.
	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c := h.liveness[0]
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}

	rec = httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestCheck_RecoversAfterOneSuccess(t *testing.T) {
	var fail bool
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	fail = true
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}
	require.False(t, c.healthy.Load())

	fail = false
	c.run(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestCheck_ToleratesBelowThresholdFailures(t *testing.T) {
	calls := 0
	c := newCheck("flaky", time.Second, func(context.Context) error {
		calls++
		if calls <= failureThreshold-1 {
			return errors.New("down")
		}
		return nil
	})

	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}
	assert.True(t, c.healthy.Load())
}

func TestStartAndStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddReadinessCheck("probe", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}

package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRecordingServer(t *testing.T) (*httptest.Server, *[]Payload) {
	t.Helper()
	var received []Payload
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestProgressiveAlertFirstAlertOnThirdFailure(t *testing.T) {
	srv, received := newRecordingServer(t)
	clock := &fakeClock{now: time.Now()}
	svc := New(srv.URL).WithClock(clock)
	ctx := context.Background()

	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, *received, "no alert should fire before the third consecutive failure")

	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "boom", nil)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, *received, 1)
	assert.Equal(t, SeverityCritical, (*received)[0].Severity)
	assert.Equal(t, "boom", (*received)[0].Message)
}

func TestProgressiveAlertEscalationSchedule(t *testing.T) {
	srv, received := newRecordingServer(t)
	clock := &fakeClock{now: time.Now()}
	svc := New(srv.URL).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	}
	time.Sleep(50 * time.Millisecond)
	require.Len(t, *received, 1)

	// Before 6h, a further failure should not re-alert.
	clock.Advance(5 * time.Hour)
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, *received, 1)

	// At 6h, the second alert fires.
	clock.Advance(1 * time.Hour)
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, *received, 2)
}

func TestRecoveryAlertOnlyWhenPreviouslyAlerted(t *testing.T) {
	srv, received := newRecordingServer(t)
	clock := &fakeClock{now: time.Now()}
	svc := New(srv.URL).WithClock(clock)
	ctx := context.Background()

	// Two failures: never crosses the 3-failure threshold, no alert sent.
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", false, "", nil)
	svc.SendProgressiveAlert(ctx, "node-1", "server-1", true, "", nil)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, *received, "no recovery alert expected when no alert was ever sent")

	// Three failures crosses the threshold; recovery should now fire.
	for i := 0; i < 3; i++ {
		svc.SendProgressiveAlert(ctx, "node-2", "server-1", false, "", nil)
	}
	svc.SendProgressiveAlert(ctx, "node-2", "server-1", true, "", nil)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, *received, 2)
	assert.Equal(t, SeverityRecovery, (*received)[1].Severity)
}

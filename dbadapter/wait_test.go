package dbadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}

	return nil
}

func TestWaitReadyRetries(t *testing.T) {
	p := &flakyPinger{failures: 2}

	err := WaitReady(t.Context(), p, 10*time.Second, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestWaitReadyGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 1000}

	err := WaitReady(t.Context(), p, 0, nil)
	assert.IsError(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, p.calls)
}

func TestWaitReadyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := WaitReady(ctx, &flakyPinger{failures: 1000}, time.Minute, nil)
	assert.IsError(t, err, ErrNotReady)
	assert.IsError(t, err, context.Canceled)
}

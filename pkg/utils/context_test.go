package utils_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/autoban/pkg/utils"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		duration    time.Duration
		cancelAfter time.Duration
		cancelFirst bool
		want        bool
	}{
		{name: "elapses", duration: 10 * time.Millisecond, want: true},
		{name: "cancelled while waiting", duration: time.Second, cancelAfter: 10 * time.Millisecond},
		{name: "zero duration", want: true},
		{name: "zero duration on cancelled context", cancelFirst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			if tt.cancelFirst {
				cancel()
			}

			if tt.cancelAfter > 0 {
				time.AfterFunc(tt.cancelAfter, cancel)
			}

			assert.Equal(t, tt.want, utils.Wait(ctx, tt.duration))
		})
	}
}

func TestRunEvery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var runs atomic.Int32

	done := make(chan struct{})
	go func() {
		defer close(done)
		utils.RunEvery(ctx, time.Millisecond, zap.NewNop(), "test", func(context.Context) {
			if runs.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	assert.Equal(t, int32(3), runs.Load())
}

func TestRunEveryCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	utils.RunEvery(ctx, time.Second, nil, "test", func(context.Context) { called = true })
	assert.False(t, called)
}

package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "notify"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	results := make(chan error, 10)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		panic("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond, OnDone: func(_ Job, err error) {
		results <- err
	}})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "notify"}))

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			assert.ErrorContains(t, err, "panicked")
		case <-time.After(2 * time.Second):
			t.Fatal("missing attempt result")
		}
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(context.Background(), Job{Type: "noop"}))
}

func TestTryEnqueueReturnsWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	running := make(chan struct{}, 1)
	q := NewQueue("busy", func(ctx context.Context, job Job) error {
		running <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.TryEnqueue(Job{ID: "1", Type: "notify"}))
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up job")
	}
	require.NoError(t, q.TryEnqueue(Job{ID: "2", Type: "notify"}))

	done := make(chan error, 1)
	go func() { done <- q.TryEnqueue(Job{ID: "3", Type: "notify"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("TryEnqueue blocked on a full buffer")
	}
}

func TestTryEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.TryEnqueue(Job{Type: "noop"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQueueFull)
}

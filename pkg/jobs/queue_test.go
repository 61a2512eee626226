package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesAndFlagsFinalAttempt(t *testing.T) {
	var mu sync.Mutex
	var seen []Job
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job)
		mu.Unlock()
		if job.LastAttempt {
			close(done)
		}
		return errors.New("render failed")
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "transcript"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached its final attempt")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{seen[0].Attempt, seen[1].Attempt, seen[2].Attempt})
	assert.False(t, seen[0].LastAttempt)
	assert.False(t, seen[1].LastAttempt)
	assert.True(t, seen[2].LastAttempt)
}

func TestQueueStopsRetryingAfterSuccess(t *testing.T) {
	calls := make(chan Job, 4)
	handler := func(ctx context.Context, job Job) error {
		calls <- job
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "transcript"}))

	select {
	case job := <-calls:
		assert.Equal(t, 1, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never handled")
	}

	select {
	case job := <-calls:
		t.Fatalf("unexpected retry after success: attempt %d", job.Attempt)
	case <-time.After(20 * time.Millisecond):
	}
}

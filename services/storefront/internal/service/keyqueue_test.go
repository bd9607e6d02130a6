package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingKeys(q *keyQueue) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}

func TestKeyQueue_SameKeyRunsInOrder(t *testing.T) {
	q := newKeyQueue()
	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		q.Go("k", func() {
			if i == 0 {
				time.Sleep(30 * time.Millisecond)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	q.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Zero(t, pendingKeys(q))
}

func TestKeyQueue_DifferentKeysRunConcurrently(t *testing.T) {
	q := newKeyQueue()
	release := make(chan struct{})
	otherRan := make(chan struct{})

	q.Go("slow", func() { <-release })
	q.Go("fast", func() { close(otherRan) })

	select {
	case <-otherRan:
	case <-time.After(time.Second):
		t.Fatal("job for another key was blocked")
	}
	assert.Eventually(t, func() bool { return pendingKeys(q) == 1 }, time.Second, time.Millisecond)
	close(release)
	q.Wait()
}

func TestKeyQueue_Do(t *testing.T) {
	q := newKeyQueue()
	ran := false
	require.NoError(t, q.Do(context.Background(), "k", func() { ran = true }))
	assert.True(t, ran)

	release := make(chan struct{})
	q.Go("k", func() { <-release })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Do(ctx, "k", func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	q.Wait()
}

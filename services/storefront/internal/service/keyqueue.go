package service

import (
	"context"
	"sync"
)

// keyQueue runs functions in the background, one at a time per key, in the
// order they were submitted. Functions for different keys run concurrently.
type keyQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{} // done channel of the last job per key
	wg    sync.WaitGroup
}

func newKeyQueue() *keyQueue {
	return &keyQueue{tails: make(map[string]chan struct{})}
}

// Go submits fn under key and returns a channel closed once fn has run.
func (q *keyQueue) Go(key string, fn func()) <-chan struct{} {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tails[key]
	q.tails[key] = done
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		defer func() {
			q.mu.Lock()
			if q.tails[key] == done {
				delete(q.tails, key)
			}
			q.mu.Unlock()
			close(done)
		}()

		if prev != nil {
			<-prev
		}
		fn()
	}()
	return done
}

// Do submits fn under key and waits for it to run. If ctx ends first, Do
// returns ctx.Err() and fn still runs in its turn.
func (q *keyQueue) Do(ctx context.Context, key string, fn func()) error {
	select {
	case <-q.Go(key, fn):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has run.
func (q *keyQueue) Wait() {
	q.wg.Wait()
}

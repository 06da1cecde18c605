// Package parallel provides the bounded worker pool that fans measurement
// column work out across goroutines. Results keep their input positions, so
// a caller scanning for the first failure reports the same column no matter
// how the workers interleave.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Pool bounds the number of goroutines used for column processing.
type Pool struct {
	size   int
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pool running at most size goroutines at a time. Zero or
// negative sizes fall back to the machine's CPU count.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{size: size, ctx: ctx, cancel: cancel}
}

// Close stops the pool. Running workers finish their current item and exit.
func (p *Pool) Close() {
	p.cancel()
}

// ProcessIndexed applies worker to every item and returns the results in
// input order. Each result slot is written by exactly one goroutine and the
// closing wait publishes the writes.
func ProcessIndexed[T, R any](p *Pool, items []T, worker func(int, T) R) []R {
	if len(items) == 0 {
		return nil
	}

	results := make([]R, len(items))
	indexCh := make(chan int, len(items))

	var wg sync.WaitGroup
	for w := 0; w < p.size; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				select {
				case <-p.ctx.Done():
					return
				default:
					results[i] = worker(i, items[i])
				}
			}
		}()
	}

	// The channel is buffered to the item count, so feeding never blocks.
	for i := range items {
		indexCh <- i
	}
	close(indexCh)

	wg.Wait()
	return results
}

// Package workerpool runs independent units of work with bounded parallelism.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
	}
}

// Pool limits how many work items execute at once. A Pool holds no
// goroutines between calls and may be shared.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a new worker pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one Item. Index is the item's position in the
// submitted slice.
type Result[T any] struct {
	ID     string
	Index  int
	Result T
	Err    error
}

// Process executes all items with bounded parallelism.
// Returns results in completion order (not submission order).
// Continues processing all items even if some fail.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], 0, len(items))
	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(index int, item Item[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- Result[T]{ID: item.ID, Index: index, Err: ctx.Err()}
				return
			}

			// Items still queued when the context ends are not started.
			if err := ctx.Err(); err != nil {
				resultsChan <- Result[T]{ID: item.ID, Index: index, Err: err}
				return
			}

			result, err := item.Execute(ctx)
			resultsChan <- Result[T]{
				ID:     item.ID,
				Index:  index,
				Result: result,
				Err:    err,
			}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}

// ProcessAll executes all items with bounded parallelism and returns their
// results in submission order. The first failure cancels the items that have
// not finished and is returned; later failures are ignored.
func ProcessAll[T any](ctx context.Context, pool *Pool, items []Item[T]) ([]T, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
	)
	wrapped := make([]Item[T], len(items))
	for i, item := range items {
		wrapped[i] = Item[T]{
			ID: item.ID,
			Execute: func(ctx context.Context) (T, error) {
				result, err := item.Execute(ctx)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						pool.logger.Debug("Work item failed, cancelling remaining items",
							zap.String("id", item.ID),
							zap.Error(err))
						cancel()
					}
					mu.Unlock()
				}
				return result, err
			},
		}
	}

	ordered := make([]T, len(items))
	for _, r := range Process(ctx, pool, wrapped, nil) {
		ordered[r.Index] = r.Result
	}

	if firstErr != nil {
		return nil, firstErr
	}
	// Parent context ended before any item reported its own failure.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, nil
}

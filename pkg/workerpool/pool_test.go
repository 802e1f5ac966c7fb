package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_Success(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	items := []Item[string]{
		{ID: "task1", Execute: func(ctx context.Context) (string, error) { return "result1", nil }},
		{ID: "task2", Execute: func(ctx context.Context) (string, error) { return "result2", nil }},
		{ID: "task3", Execute: func(ctx context.Context) (string, error) { return "result3", nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)

	byID := make(map[string]Result[string])
	for _, r := range results {
		require.NoError(t, r.Err)
		byID[r.ID] = r
	}
	assert.Equal(t, "result1", byID["task1"].Result)
	assert.Equal(t, 0, byID["task1"].Index)
	assert.Equal(t, "result3", byID["task3"].Result)
	assert.Equal(t, 2, byID["task3"].Index)
}

func TestProcess_ContinuesAfterErrors(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	expectedErr := errors.New("task failed")
	items := []Item[int]{
		{ID: "ok", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "fail", Execute: func(ctx context.Context) (int, error) { return 0, expectedErr }},
		{ID: "ok2", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, expectedErr)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestProcess_EmptyItems(t *testing.T) {
	pool := New(DefaultConfig(), zap.NewNop())
	assert.Nil(t, Process[int](context.Background(), pool, nil, nil))
}

func TestProcess_RespectsConcurrencyLimit(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var current, peak int32
	items := make([]Item[int], 8)
	for i := range items {
		items[i] = Item[int]{
			ID: fmt.Sprintf("task%d", i),
			Execute: func(ctx context.Context) (int, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return i, nil
			},
		}
	}

	var progressCalls int32
	results := Process(context.Background(), pool, items, func(completed, total int) {
		atomic.AddInt32(&progressCalls, 1)
		assert.Equal(t, 8, total)
	})

	assert.Len(t, results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, int32(8), atomic.LoadInt32(&progressCalls))
}

func TestNew_DefaultsInvalidConcurrency(t *testing.T) {
	pool := New(Config{MaxConcurrent: 0}, zap.NewNop())
	assert.Equal(t, DefaultConfig().MaxConcurrent, pool.MaxConcurrent())
}

func TestProcessAll_PreservesSubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 4}, zap.NewNop())

	items := make([]Item[int], 5)
	for i := range items {
		items[i] = Item[int]{
			ID: fmt.Sprintf("task%d", i),
			Execute: func(ctx context.Context) (int, error) {
				// Later items finish first.
				time.Sleep(time.Duration(5-i) * 5 * time.Millisecond)
				return i * 10, nil
			},
		}
	}

	results, err := ProcessAll(context.Background(), pool, items)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 30, 40}, results)
}

func TestProcessAll_FirstErrorCancelsRemaining(t *testing.T) {
	pool := New(Config{MaxConcurrent: 6}, zap.NewNop())

	expectedErr := errors.New("boom")
	items := []Item[int]{
		{ID: "fail", Execute: func(ctx context.Context) (int, error) { return 0, expectedErr }},
	}
	for i := 0; i < 5; i++ {
		items = append(items, Item[int]{
			ID: fmt.Sprintf("blocked%d", i),
			Execute: func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			},
		})
	}

	results, err := ProcessAll(context.Background(), pool, items)
	require.ErrorIs(t, err, expectedErr)
	assert.Nil(t, results)
}

func TestProcessAll_ParentContextCancelled(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []Item[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
	}

	_, err := ProcessAll(ctx, pool, items)
	assert.ErrorIs(t, err, context.Canceled)
}

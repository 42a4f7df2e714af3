package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is how many events are processed concurrently
const DefaultBatchSize = 5

// BatchResult counts the outcomes of RunBatches
type BatchResult struct {
	Total  int
	Failed int
	Errors []error
}

// RunBatches calls fn for every item, size items at a time. Failures and
// panics are recorded per item and never stop sibling items or later batches.
func RunBatches[T any](ctx context.Context, items []T, size int, fn func(context.Context, T) error) BatchResult {
	if size <= 0 {
		size = DefaultBatchSize
	}
	result := BatchResult{Total: len(items)}

	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		outcomes := make([]error, len(batch))

		var g errgroup.Group
		for i, item := range batch {
			i, item := i, item
			g.Go(func() error {
				outcomes[i] = runIsolated(ctx, item, fn)
				return nil
			})
		}
		_ = g.Wait()

		for _, err := range outcomes {
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err)
			}
		}
	}

	return result
}

func runIsolated[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing item: %v", r)
		}
	}()
	return fn(ctx, item)
}

package util

import (
	"context"
	"errors"
	"sync"
)

// Parallel runs fn for every input on at most workerLimit goroutines and
// returns all failures joined. Once ctx is done no new input is started.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	tasks := make(chan T)

	var (
		mu   sync.Mutex
		errs []error
	)

	// workers
	var wg sync.WaitGroup
	for i := 0; i < min(workerLimit, len(inputs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	// feed tasks
feed:
	for _, item := range inputs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case tasks <- item:
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

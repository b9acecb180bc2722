package app

import (
	"context"
	"log"
	"sync"
)

// TaskRunner funnels fire-and-forget work through one place so failures are
// logged instead of silently lost. Tasks are not retried; every failure is
// terminal per attempt.
type TaskRunner struct {
	wg sync.WaitGroup
}

func NewTaskRunner() *TaskRunner {
	return &TaskRunner{}
}

// Go runs fn in the background. Errors go to the log sink and nowhere else.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(context.Background()); err != nil {
			log.Printf("background task %s failed: %v", name, err)
		}
	}()
}

// Wait blocks until all submitted tasks have finished. Used on shutdown and
// in tests.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}

// Package service wires the pipeline together behind two facades, one
// per artifact class, and owns the indexing worker pool.
package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent indexing work. Tasks run on a background
// context: once ingestion is accepted, cancelling the ingress request
// must not abandon a half-written index.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
	log *slog.Logger
}

func NewPool(workers int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), log: log}
}

// Submit queues a task. It returns immediately; the task runs once a
// worker slot frees up.
func (p *Pool) Submit(name string, task func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx := context.Background()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("indexing task panicked",
					slog.String("task", name), slog.Any("panic", r))
			}
		}()
		task(ctx)
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scheduler runs independent tasks on a fixed pool of workers
// with work stealing.
//
// Each worker has its own deque of task indexes. A worker takes the
// newest task from its own deque, and when the deque is empty it steals
// the older half of another worker's deque. Tasks don't spawn tasks, so
// a worker finishes when it finds all deques empty.
package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/runtimex"
)

// Option is scheduler option.
type Option struct {
	// Workers is the number of workers.
	// If zero or negative, runtimex.NumCPU() is used.
	Workers int
}

// WorkerStats is statistics of a worker.
type WorkerStats struct {
	// Executed is the number of tasks executed by the worker.
	Executed int
	// Steals is the number of successful steals.
	Steals int
	// Stolen is the number of tasks the worker stole.
	Stolen int
	// Busy is the total duration the worker spent on tasks.
	Busy time.Duration
}

// Stats is statistics of a run.
type Stats struct {
	Workers []WorkerStats
}

// Executed returns the total number of executed tasks.
func (s Stats) Executed() int {
	n := 0
	for _, w := range s.Workers {
		n += w.Executed
	}
	return n
}

// Steals returns the total number of successful steals.
func (s Stats) Steals() int {
	n := 0
	for _, w := range s.Workers {
		n += w.Steals
	}
	return n
}

// Func runs a task. i is the index of the task in tasks.
type Func[T any] func(ctx context.Context, i int, task T) error

// Run runs fn for each task on worker goroutines, and waits for all
// tasks to finish.
// If fn returns an error, or ctx is canceled, workers stop picking
// new tasks and Run returns the first error.
func Run[T any](ctx context.Context, opt Option, tasks []T, fn Func[T]) (Stats, error) {
	n := runtimex.Parallelism(opt.Workers)
	if n > len(tasks) {
		n = len(tasks)
	}
	if n == 0 {
		return Stats{}, nil
	}
	deques := make([]*deque, n)
	for w := range deques {
		deques[w] = &deque{tasks: make([]int, 0, len(tasks)/n+1)}
	}
	// push in reverse so that the owner pops tasks in the given order.
	for i := len(tasks) - 1; i >= 0; i-- {
		deques[i%n].tasks = append(deques[i%n].tasks, i)
	}
	stats := Stats{Workers: make([]WorkerStats, n)}
	eg, ctx := errgroup.WithContext(ctx)
	for w := range n {
		eg.Go(func() error {
			ws := &stats.Workers[w]
			for {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				i, ok := deques[w].pop()
				if !ok {
					i, ok = steal(w, deques, ws)
				}
				if !ok {
					if log.V(1) {
						clog.Infof(ctx, "worker %d done: %+v", w, *ws)
					}
					return nil
				}
				started := time.Now()
				err := fn(ctx, i, tasks[i])
				ws.Busy += time.Since(started)
				ws.Executed++
				if err != nil {
					return fmt.Errorf("task %d: %w", i, err)
				}
			}
		})
	}
	err := eg.Wait()
	return stats, err
}

// steal steals tasks for worker w from other workers, scanning victims
// starting at the next worker. It returns one of the stolen tasks and
// keeps the rest in w's deque.
func steal(w int, deques []*deque, ws *WorkerStats) (int, bool) {
	n := len(deques)
	for j := 1; j < n; j++ {
		victim := deques[(w+j)%n]
		stolen := victim.stealHalf()
		if len(stolen) == 0 {
			continue
		}
		ws.Steals++
		ws.Stolen += len(stolen)
		// run the oldest stolen task first, keep the rest in order.
		for k := len(stolen) - 1; k > 0; k-- {
			deques[w].push(stolen[k])
		}
		return stolen[0], true
	}
	return 0, false
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeque(t *testing.T) {
	d := &deque{}
	d.push(1, 2, 3, 4, 5)
	if got, ok := d.pop(); !ok || got != 5 {
		t.Errorf("pop()=%d, %t; want 5, true", got, ok)
	}
	if diff := cmp.Diff([]int{1, 2}, d.stealHalf()); diff != "" {
		t.Errorf("stealHalf() diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, d.stealHalf()); diff != "" {
		t.Errorf("stealHalf() diff -want +got:\n%s", diff)
	}
	if got, ok := d.pop(); !ok || got != 4 {
		t.Errorf("pop()=%d, %t; want 4, true", got, ok)
	}
	if got, ok := d.pop(); ok {
		t.Errorf("pop()=%d, %t; want false", got, ok)
	}
	if got := d.stealHalf(); got != nil {
		t.Errorf("stealHalf()=%v; want nil", got)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		workers int
		tasks   int
	}{
		{workers: 1, tasks: 0},
		{workers: 1, tasks: 10},
		{workers: 4, tasks: 1},
		{workers: 4, tasks: 100},
		{workers: 16, tasks: 1000},
		{workers: 0, tasks: 50},
	} {
		t.Run(fmt.Sprintf("w%d-t%d", tc.workers, tc.tasks), func(t *testing.T) {
			tasks := make([]string, tc.tasks)
			for i := range tasks {
				tasks[i] = fmt.Sprintf("task%d", i)
			}
			var mu sync.Mutex
			seen := make(map[int]int)
			stats, err := Run(ctx, Option{Workers: tc.workers}, tasks, func(ctx context.Context, i int, task string) error {
				if task != tasks[i] {
					t.Errorf("task %d=%q; want %q", i, task, tasks[i])
				}
				mu.Lock()
				seen[i]++
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("Run=%v; want nil err", err)
			}
			for i := range tasks {
				if seen[i] != 1 {
					t.Errorf("task %d executed %d times; want 1", i, seen[i])
				}
			}
			if got := stats.Executed(); got != tc.tasks {
				t.Errorf("Executed()=%d; want %d", got, tc.tasks)
			}
			if tc.workers > 0 && len(stats.Workers) > tc.workers {
				t.Errorf("workers=%d; want <= %d", len(stats.Workers), tc.workers)
			}
		})
	}
}

func TestRun_Steal(t *testing.T) {
	ctx := context.Background()
	const n = 10
	tasks := make([]int, n)
	release := make(chan struct{})
	var done atomic.Int32
	stats, err := Run(ctx, Option{Workers: 2}, tasks, func(ctx context.Context, i int, _ int) error {
		if i == 1 {
			// blocks one worker until all other tasks are done.
			<-release
			return nil
		}
		if done.Add(1) == n-1 {
			close(release)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run=%v; want nil err", err)
	}
	if got := stats.Executed(); got != n {
		t.Errorf("Executed()=%d; want %d", got, n)
	}
	if stats.Steals() == 0 {
		t.Errorf("Steals()=0; want >0: %+v", stats)
	}
}

func TestRun_Error(t *testing.T) {
	ctx := context.Background()
	errTask := errors.New("task failed")
	tasks := make([]int, 100)
	_, err := Run(ctx, Option{Workers: 4}, tasks, func(ctx context.Context, i int, _ int) error {
		if i == 5 {
			return errTask
		}
		return nil
	})
	if !errors.Is(err, errTask) {
		t.Errorf("Run=%v; want %v", err, errTask)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tasks := make([]int, 10)
	stats, err := Run(ctx, Option{Workers: 2}, tasks, func(ctx context.Context, i int, _ int) error {
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run=%v; want %v", err, context.Canceled)
	}
	if got := stats.Executed(); got != 0 {
		t.Errorf("Executed()=%d; want 0", got)
	}
}

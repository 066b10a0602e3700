// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import "sync"

// deque is a worker local task queue.
// The owner pushes and pops at the back, and thieves steal from the front.
type deque struct {
	mu    sync.Mutex
	tasks []int
}

func (d *deque) push(tasks ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, tasks...)
}

// pop pops a task from the back.
func (d *deque) pop() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.tasks)
	if n == 0 {
		return 0, false
	}
	t := d.tasks[n-1]
	d.tasks = d.tasks[:n-1]
	return t, true
}

// stealHalf removes the older half (rounded up) of tasks from the front.
func (d *deque) stealHalf() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.tasks)
	if n == 0 {
		return nil
	}
	k := (n + 1) / 2
	stolen := make([]int, k)
	copy(stolen, d.tasks[:k])
	d.tasks = d.tasks[k:]
	return stolen
}

func (d *deque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides named counting semaphores.
// They bound concurrent file reads independently of the worker pool size.
package semaphore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	mu         sync.Mutex
	semaphores = map[string]*Semaphore{}
)

// Semaphore is a semaphore.
type Semaphore struct {
	name string
	ch   chan struct{}

	waits atomic.Int64
	reqs  atomic.Int64
}

// New creates a new semaphore with name and capacity, and registers it.
// A semaphore registered with the same name is replaced.
func New(name string, n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	s := &Semaphore{
		name: name,
		ch:   make(chan struct{}, n),
	}
	mu.Lock()
	semaphores[name] = s
	mu.Unlock()
	return s
}

// Lookup returns a registered semaphore for the name.
func Lookup(name string) (*Semaphore, error) {
	mu.Lock()
	defer mu.Unlock()
	s, ok := semaphores[name]
	if !ok {
		return nil, fmt.Errorf("semaphore %q not found", name)
	}
	return s, nil
}

// Names returns sorted names of registered semaphores.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(semaphores))
	for name := range semaphores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WaitAcquire acquires a semaphore.
// It returns a func to release it.
func (s *Semaphore) WaitAcquire(ctx context.Context) (func(), error) {
	s.waits.Add(1)
	defer s.waits.Add(-1)
	select {
	case s.ch <- struct{}{}:
		s.reqs.Add(1)
		var once sync.Once
		return func() {
			once.Do(func() { <-s.ch })
		}, nil
	case <-ctx.Done():
		return func() {}, context.Cause(ctx)
	}
}

// Do runs f under semaphore.
func (s *Semaphore) Do(ctx context.Context, f func(ctx context.Context) error) error {
	done, err := s.WaitAcquire(ctx)
	if err != nil {
		return err
	}
	defer done()
	return f(ctx)
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.ch)
}

// NumServs returns number of currently served.
func (s *Semaphore) NumServs() int {
	return len(s.ch)
}

// NumWaits returns number of waiters.
func (s *Semaphore) NumWaits() int {
	return int(s.waits.Load())
}

// NumRequests returns total number of requests.
func (s *Semaphore) NumRequests() int {
	return int(s.reqs.Load())
}

// String returns a summary of the semaphore usage, used in run stats logs.
func (s *Semaphore) String() string {
	return fmt.Sprintf("%s: serv=%d/%d waits=%d reqs=%d", s.name, s.NumServs(), s.Capacity(), s.NumWaits(), s.NumRequests())
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package oncemap provides a sharded concurrent map that computes
// the value of each key at most once.
//
// Concurrent callers of Do for the same missing key are coalesced:
// one of them claims the key and runs the compute function, the others
// wait for it and receive the same value or error.
// A failed computation is not stored, so a later Do for the key
// computes again.
package oncemap

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const numShards = 64

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

// Map is a sharded map from K to V with single computation per key.
// The zero value is not usable; use New.
type Map[K comparable, V any] struct {
	seed   maphash.Seed
	shards [numShards]shard[K, V]

	computes atomic.Int64
	waits    atomic.Int64
}

// New creates a new Map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{
		seed: maphash.MakeSeed(),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]*call[V])
	}
	return m
}

func (m *Map[K, V]) shard(key K) *shard[K, V] {
	return &m.shards[maphash.Comparable(m.seed, key)%numShards]
}

// Do returns the value for key.
// If the key is not computed yet and no other caller is computing it,
// fn is called to compute it. Otherwise, Do waits for the in-flight
// computation, or until ctx is done.
// shared reports whether the value came from another call of fn.
func (m *Map[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	s := m.shard(key)
	s.mu.Lock()
	c, ok := s.m[key]
	if ok {
		s.mu.Unlock()
		m.waits.Add(1)
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, true, context.Cause(ctx)
		}
	}
	c = &call[V]{done: make(chan struct{})}
	s.m[key] = c
	s.mu.Unlock()

	m.computes.Add(1)
	normalReturn := false
	defer func() {
		if !normalReturn {
			c.err = fmt.Errorf("oncemap: compute panicked for %v", key)
		}
		if c.err != nil {
			s.mu.Lock()
			if s.m[key] == c {
				delete(s.m, key)
			}
			s.mu.Unlock()
		}
		close(c.done)
	}()
	c.val, c.err = fn(ctx)
	normalReturn = true
	return c.val, false, c.err
}

// Get returns the computed value for key.
// It returns false if the key is not computed, or still in flight.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shard(key)
	s.mu.Lock()
	c, ok := s.m[key]
	s.mu.Unlock()
	if !ok {
		var zero V
		return zero, false
	}
	select {
	case <-c.done:
		if c.err != nil {
			var zero V
			return zero, false
		}
		return c.val, true
	default:
		var zero V
		return zero, false
	}
}

// Len returns the number of keys that are computed or in flight.
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}

// Computes returns how many times compute functions were called.
func (m *Map[K, V]) Computes() int64 {
	return m.computes.Load()
}

// Waits returns how many calls of Do waited for other computations.
func (m *Map[K, V]) Waits() int64 {
	return m.waits.Load()
}

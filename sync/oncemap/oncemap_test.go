// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package oncemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_coalesce(t *testing.T) {
	ctx := context.Background()
	m := New[string, []string]()

	const n = 32
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"a.h", "b.h"}, nil
	}

	var wg sync.WaitGroup
	results := make([][]string, n)
	var shared atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, s, err := m.Do(ctx, "key", fn)
			if err != nil {
				t.Errorf("Do %d: %v", i, err)
			}
			if s {
				shared.Add(1)
			}
			results[i] = v
		}()
	}
	deadline := time.Now().Add(10 * time.Second)
	for m.Waits() < n-1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute calls=%d; want 1", got)
	}
	if got := m.Computes(); got != 1 {
		t.Errorf("Computes()=%d; want 1", got)
	}
	if got := shared.Load(); got != n-1 {
		t.Errorf("shared=%d; want %d", got, n-1)
	}
	for i, r := range results {
		if &r[0] != &results[0][0] {
			t.Errorf("results[%d] is not identical to results[0]", i)
		}
	}
}

func TestDo_errorNotCached(t *testing.T) {
	ctx := context.Background()
	m := New[int, string]()
	errIO := errors.New("io error")

	_, _, err := m.Do(ctx, 1, func(ctx context.Context) (string, error) {
		return "", errIO
	})
	if !errors.Is(err, errIO) {
		t.Fatalf("Do=%v; want %v", err, errIO)
	}
	if _, ok := m.Get(1); ok {
		t.Errorf("Get(1) ok after failure; want not found")
	}
	if m.Len() != 0 {
		t.Errorf("Len()=%d; want 0", m.Len())
	}

	v, shared, err := m.Do(ctx, 1, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" || shared {
		t.Errorf("Do=%q, %t, %v; want %q, false, nil", v, shared, err, "ok")
	}
	if got, ok := m.Get(1); !ok || got != "ok" {
		t.Errorf("Get(1)=%q, %t; want %q, true", got, ok, "ok")
	}
	if m.Computes() != 2 {
		t.Errorf("Computes()=%d; want 2", m.Computes())
	}
}

func TestDo_waiterGetsError(t *testing.T) {
	ctx := context.Background()
	m := New[string, int]()
	errIO := errors.New("io error")
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := m.Do(ctx, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 0, errIO
		})
		if !errors.Is(err, errIO) {
			t.Errorf("owner Do=%v; want %v", err, errIO)
		}
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, shared, err := m.Do(ctx, "k", func(ctx context.Context) (int, error) {
			t.Errorf("compute called while in flight")
			return 1, nil
		})
		if !shared || !errors.Is(err, errIO) {
			t.Errorf("waiter Do=_, %t, %v; want true, %v", shared, err, errIO)
		}
	}()
	for m.Waits() < 1 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
}

func TestDo_waiterCanceled(t *testing.T) {
	m := New[string, int]()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _, _ = m.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := m.Do(ctx, "k", func(ctx context.Context) (int, error) {
		return 2, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do=%v; want %v", err, context.Canceled)
	}
	close(release)
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cache provides the resolution cache keyed by fingerprint.
package cache

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/sync/oncemap"
)

// ComputeFunc computes a resolution result, and returns file stamps
// the result depends on.
type ComputeFunc func(ctx context.Context) (*scandeps.Result, []scandeps.FileStamp, error)

// Cache is a resolution cache used in the builder.
// For each fingerprint, the result is computed at most once in a run,
// and concurrent requests for the same fingerprint wait for the
// in-flight computation.
type Cache struct {
	results *oncemap.Map[scandeps.Fingerprint, *scandeps.Result]
	store   Store

	hits       atomic.Int64
	storeHits  atomic.Int64
	storeFails atomic.Int64
}

// New creates new cache. store may be nil.
func New(store Store) *Cache {
	return &Cache{
		results: oncemap.New[scandeps.Fingerprint, *scandeps.Result](),
		store:   store,
	}
}

// Stats is cache statistics.
type Stats struct {
	// Computes is the number of computations.
	Computes int64
	// Hits is the number of requests served by other requests'
	// results in the run.
	Hits int64
	// StoreHits is the number of results loaded from the store.
	StoreHits int64
	// StoreFails is the number of failures to access the store.
	StoreFails int64
	// Entries is the number of fingerprints in the cache.
	Entries int
}

// Stats returns statistics of the cache.
func (c *Cache) Stats() Stats {
	return Stats{
		Computes:   c.results.Computes() - c.storeHits.Load(),
		Hits:       c.hits.Load(),
		StoreHits:  c.storeHits.Load(),
		StoreFails: c.storeFails.Load(),
		Entries:    c.results.Len(),
	}
}

// GetOrCompute returns the result for fp.
// If fp is not in the cache, it loads from the store, or calls fn
// to compute it and saves the result in the store.
// A failed computation is not cached, and the error is returned
// to all requests waiting for it.
func (c *Cache) GetOrCompute(ctx context.Context, fp scandeps.Fingerprint, fn ComputeFunc) (*scandeps.Result, error) {
	r, shared, err := c.results.Do(ctx, fp, func(ctx context.Context) (*scandeps.Result, error) {
		if r, ok := c.load(ctx, fp); ok {
			return r, nil
		}
		r, stamps, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.save(ctx, fp, r, stamps)
		return r, nil
	})
	if shared && err == nil {
		c.hits.Add(1)
	}
	return r, err
}

func (c *Cache) load(ctx context.Context, fp scandeps.Fingerprint) (*scandeps.Result, bool) {
	if c.store == nil {
		return nil, false
	}
	ent, err := c.store.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.storeFails.Add(1)
			clog.Warningf(ctx, "cache get %s: %v", fp, err)
		} else if log.V(1) {
			clog.Infof(ctx, "cache miss %s: %v", fp, err)
		}
		return nil, false
	}
	c.storeHits.Add(1)
	return ent.Result, true
}

func (c *Cache) save(ctx context.Context, fp scandeps.Fingerprint, r *scandeps.Result, stamps []scandeps.FileStamp) {
	if c.store == nil {
		return
	}
	if r.Partial {
		// partial results are recomputed in every run.
		return
	}
	err := c.store.Set(ctx, &Entry{
		Fingerprint: fp,
		Result:      r,
		Inputs:      stamps,
		Created:     time.Now(),
	})
	if err != nil {
		c.storeFails.Add(1)
		clog.Warningf(ctx, "cache set %s: %v", fp, err)
	}
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.chromium.org/infra/build/compdb/scandeps"
)

// Entry is a persisted resolution result.
type Entry struct {
	Fingerprint scandeps.Fingerprint `json:"fingerprint"`
	Result      *scandeps.Result     `json:"result"`
	// Inputs are the stamps of the files the result depends on,
	// including absent header candidates. The entry is stale if any
	// of them is changed, or an absent one is created.
	Inputs  []scandeps.FileStamp `json:"inputs"`
	Created time.Time            `json:"created"`
}

// ErrStale is returned when an entry exists but its inputs were modified.
// It wraps fs.ErrNotExist.
var ErrStale = fmt.Errorf("stale entry: %w", fs.ErrNotExist)

// Store is an interface of persistent result store.
type Store interface {
	// Get gets the entry identified by the fingerprint.
	// It returns an error wrapping fs.ErrNotExist if not found or stale.
	Get(context.Context, scandeps.Fingerprint) (*Entry, error)
	// Set stores the entry.
	Set(context.Context, *Entry) error
}

// validate checks the inputs of ent are not modified.
func validate(ent *Entry) error {
	for _, in := range ent.Inputs {
		st := scandeps.Stat(in.Path)
		switch {
		case st == in:
		case in.Absent:
			return fmt.Errorf("%w: %s created", ErrStale, in.Path)
		case st.Absent:
			return fmt.Errorf("%w: %s removed", ErrStale, in.Path)
		default:
			return fmt.Errorf("%w: %s modified", ErrStale, in.Path)
		}
	}
	return nil
}

// Layered is a multi-layer store. It will attempt to read from stores in
// priority order, and when writing, attempts to write to all stores.
type Layered struct {
	// The stores here are ordered by priority (higher priority first).
	stores []Store
}

// NewLayered creates a layered store.
func NewLayered(stores ...Store) *Layered {
	return &Layered{stores: stores}
}

// Get gets the entry from the first store that has it.
func (l *Layered) Get(ctx context.Context, fp scandeps.Fingerprint) (*Entry, error) {
	for _, s := range l.stores {
		ent, err := s.Get(ctx, fp)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return ent, err
		}
	}
	return nil, fmt.Errorf("%s: %w", fp, fs.ErrNotExist)
}

// Set sets the entry in all stores.
func (l *Layered) Set(ctx context.Context, ent *Entry) error {
	var errs []error
	for _, s := range l.stores {
		errs = append(errs, s.Set(ctx, ent))
	}
	return errors.Join(errs...)
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdb

import (
	"cmp"
	"slices"
	"sync"

	"go.chromium.org/infra/build/compdb/scandeps"
)

type result struct {
	index int
	rec   BuildRecord
	res   *scandeps.Result
}

// Aggregator collects resolution results of build records.
// It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	results []result
}

// Add adds the result of the idx-th build record.
// res may be nil if the record has no resolution result.
func (a *Aggregator) Add(idx int, rec BuildRecord, res *scandeps.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result{index: idx, rec: rec, res: res})
}

// Len returns the number of added results.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// DatabaseOptions are options to build a database.
type DatabaseOptions struct {
	// WithHeaders attaches project headers to each entry.
	WithHeaders bool
	// HeaderEntries adds an entry for each project header that is not a
	// source file, using the command of the first build record
	// that includes the header.
	HeaderEntries bool
}

type entryKey struct {
	file, dir string
}

// Database builds the compilation database from added results.
// Entries with the same file and directory are deduplicated, and
// the one of the latest build record wins.
// Entries are sorted by file, then directory, so the database doesn't
// depend on the order the results were added.
func (a *Aggregator) Database(opts DatabaseOptions) *Database {
	a.mu.Lock()
	results := slices.Clone(a.results)
	a.mu.Unlock()
	slices.SortFunc(results, func(x, y result) int {
		return cmp.Compare(x.index, y.index)
	})

	latest := make(map[entryKey]int)
	sources := make(map[string]bool)
	for i, r := range results {
		latest[entryKey{file: r.rec.File, dir: r.rec.Directory}] = i
		sources[r.rec.File] = true
	}
	db := &Database{}
	for i, r := range results {
		if latest[entryKey{file: r.rec.File, dir: r.rec.Directory}] != i {
			continue
		}
		ent := newEntry(r.rec)
		if opts.WithHeaders {
			ent.Headers = r.res.ProjectHeaders()
		}
		db.Entries = append(db.Entries, ent)
	}
	if opts.HeaderEntries {
		seen := make(map[string]bool)
		for _, r := range results {
			for _, hdr := range r.res.ProjectHeaders() {
				if sources[hdr] || seen[hdr] {
					continue
				}
				seen[hdr] = true
				ent := newEntry(r.rec)
				ent.File = hdr
				ent.Output = ""
				db.Entries = append(db.Entries, ent)
			}
		}
	}
	slices.SortFunc(db.Entries, func(x, y Entry) int {
		return cmp.Or(cmp.Compare(x.File, y.File), cmp.Compare(x.Directory, y.Directory))
	})
	return db
}

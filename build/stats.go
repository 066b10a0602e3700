// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"sync/atomic"
	"time"

	"go.chromium.org/infra/build/compdb/cache"
	"go.chromium.org/infra/build/compdb/o11y/iometrics"
	"go.chromium.org/infra/build/compdb/scheduler"
)

type stats struct {
	done    atomic.Int64
	partial atomic.Int64
	failed  atomic.Int64
}

// Stats keeps statistics about the run.
type Stats struct {
	Records int // build records
	Entries int // entries in the database
	Done    int // processed records, including failed
	Partial int // records with unresolved includes or malformed flags
	Failed  int // records without entries
	Skipped int // ingested entries that were not build records

	Cache     cache.Stats
	Scheduler scheduler.Stats

	// FileIO is I/O of source and header files.
	FileIO iometrics.Stats
	// CacheIO is I/O of the persistent cache.
	CacheIO iometrics.Stats

	Duration time.Duration
}

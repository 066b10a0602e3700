// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package build synthesizes a compilation database from build records.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/compdb/cache"
	"go.chromium.org/infra/build/compdb/compdb"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/scheduler"
	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
	"go.chromium.org/infra/build/compdb/toolsupport/msvcutil"
)

// logLabelKeyFile is a key of logging label for source file.
const logLabelKeyFile = "file"

// Builder synthesizes a compilation database.
type Builder struct {
	opts     Options
	id       string
	scanDeps *scandeps.ScanDeps
	cache    *cache.Cache
	store    *cache.LocalStore
}

// Report is a result of a run.
type Report struct {
	Database *compdb.Database
	// Failures are sorted by record index.
	Failures []Failure
	Stats    Stats
}

// HasFailures reports whether any record is partial or failed.
func (r *Report) HasFailures() bool {
	return len(r.Failures) > 0
}

// New creates a new builder.
// It returns an error wrapping ErrFatal if options are invalid.
func New(opts Options) (*Builder, error) {
	classifier, err := scandeps.NewClassifier(opts.SystemRoots)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	b := &Builder{
		opts:     opts,
		id:       uuid.New().String(),
		scanDeps: scandeps.New(classifier),
	}
	var store cache.Store
	if opts.CacheDir != "" {
		b.store, err = cache.NewLocalStore(opts.CacheDir)
		if err != nil {
			return nil, err
		}
		store = b.store
	}
	b.cache = cache.New(store)
	return b, nil
}

// ID returns the run id of the builder, used as a trace in logs.
func (b *Builder) ID() string {
	return b.id
}

// Close releases resources used by the builder.
func (b *Builder) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}

// GarbageCollect removes stale entries from the persistent cache if
// it has not been done recently.
func (b *Builder) GarbageCollect(ctx context.Context) int {
	if b.store == nil {
		return 0
	}
	return b.store.GarbageCollectIfRequired(ctx)
}

// Run resolves header dependencies of records, and returns the
// compilation database.
// skipped are ingested entries that were not usable as records, and
// reported as failures.
// Per-record failures are reported in Report.Failures, and an error
// is returned only when the run can't start or is canceled.
func (b *Builder) Run(ctx context.Context, records []compdb.BuildRecord, skipped ...compdb.Skipped) (*Report, error) {
	started := time.Now()
	ctx = clog.NewSpan(ctx, b.id, "", nil)
	err := b.preflight(ctx, records)
	if err != nil {
		return nil, err
	}
	clog.Infof(ctx, "run %s: records=%d workers=%d system_roots=%q", b.id, len(records), b.opts.Workers, b.scanDeps.Classifier().Roots())

	var agg compdb.Aggregator
	var fails failures
	fails.addSkipped(skipped)
	st := &stats{}
	var p progress
	p.start(ctx, len(records), st)
	schedStats, err := scheduler.Run(ctx, scheduler.Option{Workers: b.opts.Workers}, records, func(ctx context.Context, i int, rec compdb.BuildRecord) error {
		p.setCurrent(rec.File)
		defer st.done.Add(1)
		res, err := b.resolve(ctx, i, rec, &fails)
		if err != nil {
			return err
		}
		if res == nil {
			st.failed.Add(1)
			return nil
		}
		if res.Partial {
			st.partial.Add(1)
		}
		agg.Add(i, rec, res)
		return nil
	})
	p.stop()
	if err != nil {
		return nil, err
	}
	db := agg.Database(compdb.DatabaseOptions{
		WithHeaders:   b.opts.WithHeaders,
		HeaderEntries: b.opts.HeaderEntries,
	})
	report := &Report{
		Database: db,
		Failures: fails.sorted(),
		Stats: Stats{
			Records:   len(records),
			Entries:   db.Len(),
			Done:      int(st.done.Load()),
			Partial:   int(st.partial.Load()),
			Failed:    int(st.failed.Load()),
			Skipped:   len(skipped),
			Cache:     b.cache.Stats(),
			Scheduler: schedStats,
			FileIO:    b.scanDeps.IOStats(),
			Duration:  time.Since(started),
		},
	}
	if b.store != nil {
		report.Stats.CacheIO = b.store.IOStats()
	}
	clog.Infof(ctx, "run %s: entries=%d partial=%d failed=%d cache=%+v steals=%d in %s", b.id, report.Stats.Entries, report.Stats.Partial, report.Stats.Failed, report.Stats.Cache, schedStats.Steals(), report.Stats.Duration)
	return report, nil
}

// preflight checks that records can be processed.
func (b *Builder) preflight(ctx context.Context, records []compdb.BuildRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: no build records", ErrFatal)
	}
	dirs := make(map[string]bool)
	for _, root := range b.scanDeps.Classifier().Roots() {
		dirs[root] = true
	}
	for _, rec := range records {
		if !filepath.IsAbs(rec.Directory) {
			return fmt.Errorf("%w: working directory %q of %s is not absolute", ErrFatal, rec.Directory, rec.File)
		}
		dirs[rec.Directory] = true
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallelism())
	var mu sync.Mutex
	var missing []string
	for dir := range dirs {
		eg.Go(func() error {
			fi, err := os.Stat(dir)
			if err == nil && fi.IsDir() {
				return nil
			}
			if log.V(1) {
				clog.Infof(ctx, "preflight %s: %v", dir, err)
			}
			mu.Lock()
			missing = append(missing, dir)
			mu.Unlock()
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing directories %q", ErrFatal, missing)
	}
	return nil
}

func (b *Builder) parallelism() int {
	if b.opts.Workers > 0 {
		return b.opts.Workers
	}
	return -1
}

// SearchPath returns the header search path of rec.
func (b *Builder) SearchPath(ctx context.Context, rec compdb.BuildRecord) (scandeps.SearchPath, error) {
	params := gccutil.Params{
		Args:            rec.Arguments,
		WorkDir:         rec.Directory,
		Source:          rec.File,
		DefaultIncludes: b.opts.DefaultIncludes,
	}
	if msvcutil.IsCL(rec.Compiler) {
		return msvcutil.SearchPath(ctx, params)
	}
	return gccutil.SearchPath(ctx, params)
}

// Resolve resolves header dependencies of a record.
// The result is partial if flags are malformed.
func (b *Builder) Resolve(ctx context.Context, rec compdb.BuildRecord) (*scandeps.Result, scandeps.SearchPath, error) {
	sp, spErr := b.SearchPath(ctx, rec)
	fp, err := b.scanDeps.Fingerprint(ctx, rec.File, sp)
	if err != nil {
		return nil, sp, err
	}
	res, err := b.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*scandeps.Result, []scandeps.FileStamp, error) {
		return b.scanDeps.ResolveInputs(ctx, rec.File, sp)
	})
	if err != nil {
		return nil, sp, err
	}
	// results are shared by records with the same fingerprint.
	res = res.ForSource(rec.File)
	if spErr != nil {
		r := *res
		r.Partial = true
		res = &r
	}
	if log.V(1) {
		clog.Infof(ctx, "resolve fp=%s headers=%d partial=%t", fp, len(res.Headers), res.Partial)
	}
	return res, sp, spErr
}

// resolve resolves the i-th record and records failures.
// It returns nil result if the record has no entry, and error only
// if the run should stop.
func (b *Builder) resolve(ctx context.Context, i int, rec compdb.BuildRecord, fails *failures) (*scandeps.Result, error) {
	ctx = clog.NewSpan(ctx, "", strconv.Itoa(i), map[string]string{logLabelKeyFile: rec.File})
	res, _, err := b.Resolve(ctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, gccutil.ErrMalformedFlags):
		fails.add(MalformedFlags, i, rec.File, err)
	case ctx.Err() != nil:
		return nil, context.Cause(ctx)
	case errors.Is(err, scandeps.ErrUnreadableSource):
		clog.Warningf(ctx, "unreadable source: %v", err)
		fails.add(UnreadableSource, i, rec.File, err)
		return nil, nil
	default:
		clog.Warningf(ctx, "failed to resolve: %v", err)
		fails.add(ComputeFailed, i, rec.File, err)
		return nil, nil
	}
	for _, u := range res.Unresolved {
		fails.add(UnresolvedInclude, i, rec.File, errors.New(u.String()))
	}
	return res, nil
}

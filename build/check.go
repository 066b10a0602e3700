// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"

	"go.chromium.org/infra/build/compdb/compdb"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
	"go.chromium.org/infra/build/compdb/toolsupport/makeutil"
	"go.chromium.org/infra/build/compdb/toolsupport/msvcutil"
)

// DepsDiff is a difference between resolved project headers and
// headers the compiler reported.
type DepsDiff struct {
	// Missing are project headers the compiler used, but not resolved.
	Missing []string `json:"missing,omitempty"`
	// Extra are resolved project headers the compiler didn't use,
	// e.g. headers in inactive conditional blocks.
	Extra []string `json:"extra,omitempty"`
}

// Empty reports whether no difference.
func (d DepsDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// CompareDeps compares project headers in res with deps of src
// reported by the compiler.
// Headers under system roots are not compared, as system headers
// are not expanded.
func CompareDeps(classifier *scandeps.Classifier, src string, res *scandeps.Result, deps []string) DepsDiff {
	src = filepath.Clean(src)
	resolved := make(map[string]bool)
	for _, h := range res.ProjectHeaders() {
		resolved[h] = true
	}
	used := make(map[string]bool)
	var diff DepsDiff
	for _, d := range deps {
		d = filepath.Clean(d)
		if d == src || used[d] || classifier.Classify(d) == scandeps.System {
			continue
		}
		used[d] = true
		if !resolved[d] {
			diff.Missing = append(diff.Missing, d)
		}
	}
	for _, h := range res.ProjectHeaders() {
		if !used[h] {
			diff.Extra = append(diff.Extra, h)
		}
	}
	slices.Sort(diff.Missing)
	slices.Sort(diff.Extra)
	return diff
}

// CompilerDeps returns headers the compiler uses for rec.
// It reads the depfile of rec if it exists, or runs the compiler
// to preprocess the source.
func (b *Builder) CompilerDeps(ctx context.Context, rec compdb.BuildRecord) ([]string, error) {
	if msvcutil.IsCL(rec.Compiler) {
		return msvcutil.Deps(ctx, msvcutil.DepsArgs(rec.Arguments), nil, rec.Directory)
	}
	if depfile := gccutil.Depfile(rec.Arguments); depfile != "" {
		if !filepath.IsAbs(depfile) {
			depfile = filepath.Join(rec.Directory, depfile)
		}
		deps, err := makeutil.ParseDepsFile(ctx, depfile)
		if err == nil {
			return gccutil.AbsDeps(rec.Directory, deps), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		clog.Infof(ctx, "no depfile %s. run compiler", depfile)
	}
	return gccutil.Deps(ctx, gccutil.DepsArgs(rec.Arguments), nil, rec.Directory)
}

// Check resolves rec and compares the result with the compiler's deps.
func (b *Builder) Check(ctx context.Context, rec compdb.BuildRecord) (*scandeps.Result, DepsDiff, error) {
	res, _, err := b.Resolve(ctx, rec)
	if err != nil && !errors.Is(err, gccutil.ErrMalformedFlags) {
		return nil, DepsDiff{}, err
	}
	deps, err := b.CompilerDeps(ctx, rec)
	if err != nil {
		return res, DepsDiff{}, err
	}
	return res, CompareDeps(b.scanDeps.Classifier(), rec.File, res, deps), nil
}

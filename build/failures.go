// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.chromium.org/infra/build/compdb/compdb"
)

// ErrFatal is returned when the builder can't run at all.
var ErrFatal = errors.New("fatal")

// FailureKind is a kind of per-record failure.
type FailureKind int

const (
	// UnresolvedInclude is an include directive that was not resolved.
	// The entry is still produced.
	UnresolvedInclude FailureKind = iota
	// MalformedFlags is a command line that can't be parsed.
	// The entry is produced with best-effort search path.
	MalformedFlags
	// UnreadableSource is a source file that can't be read.
	// No entry is produced.
	UnreadableSource
	// ComputeFailed is a resolution failure, e.g. I/O error.
	// No entry is produced.
	ComputeFailed
	// Skipped is an ingested entry that is not a build record.
	Skipped
)

var failureKindNames = []string{
	UnresolvedInclude: "unresolved-include",
	MalformedFlags:    "malformed-flags",
	UnreadableSource:  "unreadable-source",
	ComputeFailed:     "compute-failed",
	Skipped:           "skipped",
}

func (k FailureKind) String() string {
	if k >= 0 && int(k) < len(failureKindNames) {
		return failureKindNames[k]
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure is a failure of a record.
type Failure struct {
	Kind FailureKind `json:"kind"`
	// Index is the index of the record, or of the ingested entry
	// for Skipped.
	Index int `json:"index"`
	// File is the source file.
	File string `json:"file,omitempty"`
	// Message describes the failure.
	Message string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Kind, f.File, f.Message)
}

// Dropped reports whether the record of the failure has no entry
// in the database.
func (f Failure) Dropped() bool {
	switch f.Kind {
	case UnreadableSource, ComputeFailed, Skipped:
		return true
	}
	return false
}

// failures collects failures from workers.
type failures struct {
	mu sync.Mutex
	fs []Failure
}

func (f *failures) add(kind FailureKind, idx int, file string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fs = append(f.fs, Failure{
		Kind:    kind,
		Index:   idx,
		File:    file,
		Message: err.Error(),
	})
}

func (f *failures) addSkipped(skipped []compdb.Skipped) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range skipped {
		f.fs = append(f.fs, Failure{
			Kind:    Skipped,
			Index:   s.Index,
			File:    s.File,
			Message: fmt.Sprintf("%s: %s", s.Source, s.Reason),
		})
	}
}

// sorted returns failures in deterministic order.
func (f *failures) sorted() []Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := slices.Clone(f.fs)
	// skipped entries are indexed in the compilation database,
	// not in the records.
	rank := func(f Failure) int {
		if f.Kind == Skipped {
			return 1
		}
		return 0
	}
	slices.SortStableFunc(fs, func(x, y Failure) int {
		return cmp.Or(
			cmp.Compare(rank(x), rank(y)),
			cmp.Compare(x.Index, y.Index),
			cmp.Compare(x.Kind, y.Kind),
			cmp.Compare(x.Message, y.Message))
	})
	return fs
}

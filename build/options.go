// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Options is options of the builder.
type Options struct {
	// SystemRoots are absolute paths of directories whose headers are
	// system headers. System headers are recorded, but not expanded.
	SystemRoots []string `json:"system_roots,omitempty"`

	// DefaultIncludes are the toolchain's default include dirs,
	// searched after -isystem dirs unless -nostdinc is given.
	DefaultIncludes []string `json:"default_includes,omitempty"`

	// Workers is the number of workers. Zero means the number of CPUs.
	Workers int `json:"workers,omitempty"`

	// CacheDir is a directory of persistent resolution cache.
	// Empty means no persistent cache.
	CacheDir string `json:"cache_dir,omitempty"`

	// WithHeaders attaches project headers to each entry.
	WithHeaders bool `json:"with_headers,omitempty"`

	// HeaderEntries adds an entry for each project header.
	HeaderEntries bool `json:"header_entries,omitempty"`
}

// LoadOptions loads options from JSON config file fname.
func LoadOptions(fname string) (Options, error) {
	var opts Options
	buf, err := os.ReadFile(fname)
	if err != nil {
		return opts, err
	}
	d := json.NewDecoder(bytes.NewReader(buf))
	d.DisallowUnknownFields()
	err = d.Decode(&opts)
	if err != nil {
		return opts, fmt.Errorf("failed to parse %s: %w", fname, err)
	}
	return opts, nil
}

// Merge returns options o overridden by non-zero fields of other.
// List fields are appended.
func (o Options) Merge(other Options) Options {
	o.SystemRoots = append(append([]string(nil), o.SystemRoots...), other.SystemRoots...)
	o.DefaultIncludes = append(append([]string(nil), o.DefaultIncludes...), other.DefaultIncludes...)
	if other.Workers != 0 {
		o.Workers = other.Workers
	}
	if other.CacheDir != "" {
		o.CacheDir = other.CacheDir
	}
	o.WithHeaders = o.WithHeaders || other.WithHeaders
	o.HeaderEntries = o.HeaderEntries || other.HeaderEntries
	return o
}

// RegisterFlags registers flags for the options.
func (o *Options) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.Var((*stringsFlag)(&o.SystemRoots), "system_root", "absolute path of system header root. headers under it are not expanded. can be repeated")
	flagSet.Var((*stringsFlag)(&o.DefaultIncludes), "default_include", "toolchain default include dir, searched after -isystem dirs. can be repeated")
	flagSet.IntVar(&o.Workers, "j", 0, "number of workers. 0 means the number of CPUs")
	flagSet.StringVar(&o.CacheDir, "cache_dir", "", "directory of persistent resolution cache")
	flagSet.BoolVar(&o.WithHeaders, "with_headers", false, "attach project headers to entries")
}

// stringsFlag is a repeatable flag.
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

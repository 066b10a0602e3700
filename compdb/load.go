// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/toolsupport/cmdutil"
	"go.chromium.org/infra/build/compdb/toolsupport/msvcutil"
	"go.chromium.org/infra/build/compdb/toolsupport/shutil"
)

// Filename is the file name of compilation database in a build directory.
const Filename = "compile_commands.json"

// Skipped is an ingested entry that can't be used as a build record.
type Skipped struct {
	// Source is the name of the compilation database.
	Source string
	// Index is the index of the entry in the compilation database.
	Index int
	// File is the file of the entry, if any.
	File string
	// Reason is why the entry was skipped.
	Reason string
}

func (s Skipped) String() string {
	return fmt.Sprintf("%s[%d] %s: %s", s.Source, s.Index, s.File, s.Reason)
}

type rawEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	Output    string   `json:"output"`
}

// Load loads build records from compilation database in r.
// name is the file name of the database, and relative directory is
// resolved against the directory of name.
// Unusable entries are returned as skipped, rather than an error.
func Load(ctx context.Context, r io.Reader, name string) ([]BuildRecord, []Skipped, error) {
	var raws []rawEntry
	err := json.NewDecoder(r).Decode(&raws)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	base, err := filepath.Abs(filepath.Dir(name))
	if err != nil {
		return nil, nil, err
	}
	var recs []BuildRecord
	var skipped []Skipped
	for i, raw := range raws {
		rec, err := raw.record(base)
		if err != nil {
			skipped = append(skipped, Skipped{
				Source: name,
				Index:  i,
				File:   raw.File,
				Reason: err.Error(),
			})
			if log.V(1) {
				clog.Infof(ctx, "skip %s[%d]: %v", name, i, err)
			}
			continue
		}
		recs = append(recs, rec)
	}
	return recs, skipped, nil
}

func (raw rawEntry) record(base string) (BuildRecord, error) {
	if raw.Directory == "" {
		return BuildRecord{}, errors.New("no directory")
	}
	if raw.File == "" {
		return BuildRecord{}, errors.New("no file")
	}
	dir := raw.Directory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)
	file := raw.File
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	file = filepath.Clean(file)
	args := raw.Arguments
	if len(args) == 0 {
		if raw.Command == "" {
			return BuildRecord{}, errors.New("no command nor arguments")
		}
		var err error
		args, err = splitCommand(raw.Command)
		if err != nil {
			return BuildRecord{}, fmt.Errorf("bad command: %w", err)
		}
		if len(args) == 0 {
			return BuildRecord{}, errors.New("empty command")
		}
	}
	rec := BuildRecord{
		File:      file,
		Directory: dir,
		Arguments: args,
		Output:    raw.Output,
		Compiler:  args[0],
	}
	if len(raw.Arguments) == 0 {
		rec.Command = raw.Command
	}
	return rec, nil
}

// LoadDirs loads build records from compilation databases in build
// directories, in the order of dirs.
// A build directory without compilation database is skipped with
// a warning.
func LoadDirs(ctx context.Context, dirs []string) ([]BuildRecord, []Skipped, error) {
	var recs []BuildRecord
	var skipped []Skipped
	for _, dir := range dirs {
		fname := filepath.Join(dir, Filename)
		f, err := os.Open(fname)
		if errors.Is(err, fs.ErrNotExist) {
			clog.Warningf(ctx, "no %s in %s", Filename, dir)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		r, s, err := Load(ctx, f, fname)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		clog.Infof(ctx, "loaded %d records from %s (%d skipped)", len(r), fname, len(s))
		recs = append(recs, r...)
		skipped = append(skipped, s...)
	}
	return recs, skipped, nil
}

// splitCommand splits the command of an entry.
// Commands of cl are split by cmd.exe rules, others by shell rules.
func splitCommand(cmd string) ([]string, error) {
	if runtime.GOOS == "windows" {
		return cmdutil.Split(cmd)
	}
	argv0, _, _ := strings.Cut(strings.TrimLeft(cmd, " \t"), " ")
	if msvcutil.IsCL(strings.Trim(argv0, `"`)) {
		return cmdutil.Split(cmd)
	}
	return shutil.Split(cmd)
}

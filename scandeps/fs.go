// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/golang/glog"
	"github.com/zeebo/xxh3"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/o11y/iometrics"
	"go.chromium.org/infra/build/compdb/runtimex"
	"go.chromium.org/infra/build/compdb/sync/oncemap"
	"go.chromium.org/infra/build/compdb/sync/semaphore"
)

var cppScanSema = semaphore.New("cppscan", runtimex.NumCPU())

// FileStamp identifies a version of a file by its size and mtime.
// Absent is true if the file didn't exist when the stamp was taken,
// e.g. a header candidate probed before the one that was found.
type FileStamp struct {
	Path    string `json:"path"`
	Size    int64  `json:"size,omitempty"`
	ModTime int64  `json:"mtime,omitempty"` // unix nanoseconds
	Absent  bool   `json:"absent,omitempty"`
}

// Stat returns the current stamp of fname.
// As in header lookups, fname is absent if it is not a regular file
// or can't be accessed.
func Stat(fname string) FileStamp {
	fi, err := os.Stat(fname)
	if err != nil || fi.IsDir() {
		return FileStamp{Path: fname, Absent: true}
	}
	return FileStamp{
		Path:    fname,
		Size:    fi.Size(),
		ModTime: fi.ModTime().UnixNano(),
	}
}

type statResult struct {
	exists bool
	stamp  FileStamp
}

// scanResult is a scanned file.
type scanResult struct {
	stamp      FileStamp
	digest     xxh3.Uint128
	directives []Directive
}

// filesystem memoizes file existence, scanned directives and header maps.
// It is shared by all resolutions in a run, and assumes files are not
// modified during the run.
// Without this, every compilation unit would stat the same non-existing
// header candidates in every include directory again.
type filesystem struct {
	stats *oncemap.Map[string, statResult]
	files *oncemap.Map[string, *scanResult]
	hmaps *oncemap.Map[string, map[string]string]

	m *iometrics.IOMetrics
}

func newFilesystem() *filesystem {
	return &filesystem{
		stats: oncemap.New[string, statResult](),
		files: oncemap.New[string, *scanResult](),
		hmaps: oncemap.New[string, map[string]string](),
		m:     iometrics.New("scandeps"),
	}
}

// exists reports whether fname exists as a regular file.
func (fsys *filesystem) exists(ctx context.Context, fname string) (bool, error) {
	st, _, err := fsys.stats.Do(ctx, fname, func(ctx context.Context) (statResult, error) {
		fi, err := os.Stat(fname)
		if errors.Is(err, fs.ErrNotExist) {
			fsys.m.OpsDone(nil)
		} else {
			fsys.m.OpsDone(err)
		}
		if err != nil {
			// permission errors etc. are treated as not found,
			// as the compiler would skip the candidate too.
			if log.V(2) {
				if !errors.Is(err, fs.ErrNotExist) {
					clog.Infof(ctx, "stat %s: %v", fname, err)
				}
			}
			return statResult{}, nil
		}
		if fi.IsDir() {
			return statResult{}, nil
		}
		return statResult{
			exists: true,
			stamp: FileStamp{
				Path:    fname,
				Size:    fi.Size(),
				ModTime: fi.ModTime().UnixNano(),
			},
		}, nil
	})
	return st.exists, err
}

// stamp returns the stamp of fname checked by exists.
func (fsys *filesystem) stamp(fname string) (FileStamp, bool) {
	st, ok := fsys.stats.Get(fname)
	if !ok {
		return FileStamp{}, false
	}
	if !st.exists {
		return FileStamp{Path: fname, Absent: true}, true
	}
	return st.stamp, true
}

// scan reads fname and returns its directives.
func (fsys *filesystem) scan(ctx context.Context, fname string) (*scanResult, error) {
	sr, _, err := fsys.files.Do(ctx, fname, func(ctx context.Context) (*scanResult, error) {
		var buf []byte
		var fi os.FileInfo
		err := cppScanSema.Do(ctx, func(ctx context.Context) error {
			f, err := os.Open(fname)
			if err != nil {
				return err
			}
			defer f.Close()
			fi, err = f.Stat()
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return fmt.Errorf("%s is a directory", fname)
			}
			buf = make([]byte, fi.Size())
			var n int
			n, err = io.ReadFull(f, buf)
			fsys.m.ReadDone(n, err)
			if err != nil {
				return fmt.Errorf("read %s: %w", fname, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &scanResult{
			stamp: FileStamp{
				Path:    fname,
				Size:    fi.Size(),
				ModTime: fi.ModTime().UnixNano(),
			},
			digest:     xxh3.Hash128(buf),
			directives: Collect(ctx, fname, buf),
		}, nil
	})
	return sr, err
}

// headerMap returns a parsed *.hmap file.
func (fsys *filesystem) headerMap(ctx context.Context, fname string) (map[string]string, error) {
	m, _, err := fsys.hmaps.Do(ctx, fname, func(ctx context.Context) (map[string]string, error) {
		var buf []byte
		err := cppScanSema.Do(ctx, func(ctx context.Context) error {
			var err error
			buf, err = os.ReadFile(fname)
			fsys.m.ReadDone(len(buf), err)
			return err
		})
		if err != nil {
			return nil, err
		}
		m, err := ParseHeaderMap(ctx, buf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fname, err)
		}
		for k, v := range m {
			if !filepath.IsAbs(v) {
				m[k] = filepath.Join(filepath.Dir(fname), v)
			}
		}
		return m, nil
	})
	return m, err
}

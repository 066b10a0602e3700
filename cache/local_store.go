// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/golang/glog"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/o11y/iometrics"
	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/ui"
)

// LocalStore implements Store interface with local files.
type LocalStore struct {
	dir string

	enc *zstd.Encoder
	dec *zstd.Decoder

	singleflight singleflight.Group
	timestamp    time.Time

	m *iometrics.IOMetrics
}

// There is an upper bound on lifespan of 2 * TTL, since something that's
// expired may not actually be picked up again until the next garbage
// collection, which may not be for TTL.
const localStoreTTL = 7 * 24 * time.Hour

// NewLocalStore returns new local store in dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local cache is not configured")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &LocalStore{
		dir: dir,
		enc: enc,
		dec: dec,
		// Use the same timestamp throughout the run.
		timestamp: time.Now(),
		m:         iometrics.New("cache"),
	}, nil
}

// IOStats returns file I/O metrics of the store.
func (s *LocalStore) IOStats() iometrics.Stats {
	return s.m.Stats()
}

// Close releases resources of the store.
func (s *LocalStore) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

func (s *LocalStore) filename(fp scandeps.Fingerprint) string {
	name := fp.String()
	return filepath.Join(s.dir, "results", name[:2], name[2:])
}

// Get gets the entry identified by the fingerprint.
func (s *LocalStore) Get(ctx context.Context, fp scandeps.Fingerprint) (*Entry, error) {
	fname := s.filename(fp)
	b, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		s.m.ReadDone(0, nil)
	} else {
		s.m.ReadDone(len(b), err)
	}
	if err != nil {
		return nil, err
	}
	b, err = s.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fname, err)
	}
	ent := &Entry{}
	err = json.Unmarshal(b, ent)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", fname, err)
	}
	if ent.Fingerprint != fp || ent.Result == nil {
		return nil, fmt.Errorf("%w: %s has wrong entry", ErrStale, fname)
	}
	err = validate(ent)
	if err != nil {
		if log.V(1) {
			clog.Infof(ctx, "cache %s: %v", fname, err)
		}
		return nil, err
	}
	if err := os.Chtimes(fname, s.timestamp, s.timestamp); err != nil {
		log.Warningf("Failed to update mtime for %s: %v", fname, err)
	}
	return ent, nil
}

// Set stores the entry.
func (s *LocalStore) Set(ctx context.Context, ent *Entry) error {
	b, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	b = s.enc.EncodeAll(b, nil)
	fname := s.filename(ent.Fingerprint)
	_, err, shared := s.singleflight.Do(fname, func() (any, error) {
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			return nil, err
		}
		// Write to a temporary file first before renaming to perform an atomic
		// write.
		tmp := fname + ".tmp"
		err = os.WriteFile(tmp, b, 0644)
		s.m.WriteDone(len(b), err)
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		err = os.Rename(tmp, fname)
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		return nil, nil
	})
	if log.V(1) {
		clog.Infof(ctx, "write cache %s shared:%t: %v", ent.Fingerprint, shared, err)
	}
	return err
}

func garbageCollect(ctx context.Context, dir string, threshold time.Time) (nFiles int, spaceReclaimed int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warningf("Failed to read %s: %v", dir, err)
		return 0, 0
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			n, s := garbageCollect(ctx, path, threshold)
			nFiles += n
			spaceReclaimed += s
			continue
		}
		// There's no OS-independent way to use atime, so we just use mtime and
		// ensure that when we read a file we also update the mtime.
		info, err := entry.Info()
		if err != nil {
			log.Warningf("Failed to stat file %s: %v", path, err)
			continue
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(path); err != nil {
				log.Warningf("Failed to delete %s: %v", path, err)
				continue
			}
			nFiles++
			spaceReclaimed += info.Size()
		}
	}
	return nFiles, spaceReclaimed
}

func (s *LocalStore) needsGarbageCollection(ttl time.Duration) bool {
	b, err := os.ReadFile(filepath.Join(s.dir, "lastgc"))
	if err != nil {
		if _, err := os.Stat(s.dir); os.IsNotExist(err) {
			return false
		}
		return true
	}
	lastgc, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return true
	}
	return s.timestamp.After(time.Unix(0, lastgc).Add(ttl))
}

func (s *LocalStore) garbageCollect(ctx context.Context, ttl time.Duration) (int, int64) {
	spin := ui.Default.NewSpinner()
	spin.Start("Performing garbage collection on the local cache")

	threshold := s.timestamp.Add(-ttl)
	nFiles, spaceReclaimed := garbageCollect(ctx, filepath.Join(s.dir, "results"), threshold)
	if nFiles > 0 {
		clog.Infof(ctx, "Garbage collected local cache: Removed %d files totalling %d MB", nFiles, spaceReclaimed/1000000)
	}

	err := os.WriteFile(filepath.Join(s.dir, "lastgc"), []byte(strconv.FormatInt(s.timestamp.UnixNano(), 10)), 0644)
	if err != nil {
		log.Warningf("Failed to record last garbage collection event: %v", err)
	}
	spin.Stop(nil)
	return nFiles, spaceReclaimed
}

// GarbageCollectIfRequired performs garbage collection if it has not been
// performed within the TTL, and returns the number of removed entries.
func (s *LocalStore) GarbageCollectIfRequired(ctx context.Context) int {
	if !s.needsGarbageCollection(localStoreTTL) {
		return 0
	}
	n, _ := s.garbageCollect(ctx, localStoreTTL)
	return n
}

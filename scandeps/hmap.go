// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
)

// header map (*.hmap) is a clang extension used by Xcode builds to map
// include names to paths.
//
//	header:  magic "pamh", version u16, reserved u16,
//	         string_offset u32, string_count u32,
//	         hash_capacity u32, max_value_length u32
//	buckets: hash_capacity * {key u32, prefix u32, suffix u32}
//	strings: NUL terminated strings at string_offset.
//
// string offset 0 in a bucket means the bucket is empty.

var hmapMagic = []byte("pamh")

const hmapHeaderSize = 4 + 2 + 2 + 4*4

var errHeaderMap = errors.New("bad hmap")

type hmapReader struct {
	buf  []byte
	strs []byte
	err  error
}

func (r *hmapReader) u16(field string) uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 2 {
		r.err = fmt.Errorf("%w: short %s", errHeaderMap, field)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v
}

func (r *hmapReader) u32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 4 {
		r.err = fmt.Errorf("%w: short %s", errHeaderMap, field)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *hmapReader) str(field string) string {
	off := r.u32(field)
	if r.err != nil || off == 0 {
		return ""
	}
	if int(off) >= len(r.strs) {
		r.err = fmt.Errorf("%w: %s=%d out of range", errHeaderMap, field, off)
		return ""
	}
	s := r.strs[off:]
	e := bytes.IndexByte(s, 0)
	if e < 0 {
		r.err = fmt.Errorf("%w: %s=%d unterminated", errHeaderMap, field, off)
		return ""
	}
	return string(s[:e])
}

// ParseHeaderMap parses *.hmap file and returns include name to path map.
func ParseHeaderMap(ctx context.Context, buf []byte) (map[string]string, error) {
	if !bytes.HasPrefix(buf, hmapMagic) {
		return nil, fmt.Errorf("%w: wrong magic", errHeaderMap)
	}
	r := &hmapReader{buf: buf[len(hmapMagic):]}
	if v := r.u16("version"); r.err == nil && v != 1 {
		return nil, fmt.Errorf("%w: unknown version %d", errHeaderMap, v)
	}
	r.u16("reserved")
	stringOffset := r.u32("string_offset")
	r.u32("string_count")
	capacity := r.u32("hash_capacity")
	r.u32("max_value_length")
	if r.err != nil {
		return nil, r.err
	}
	if int(stringOffset) > len(buf) {
		return nil, fmt.Errorf("%w: string_offset=%d size=%d", errHeaderMap, stringOffset, len(buf))
	}
	if uint64(capacity)*12 > uint64(len(buf)-hmapHeaderSize) {
		return nil, fmt.Errorf("%w: hash_capacity=%d size=%d", errHeaderMap, capacity, len(buf))
	}
	r.strs = buf[stringOffset:]
	m := make(map[string]string)
	for i := range int(capacity) {
		key := r.str("key")
		prefix := r.str("prefix")
		suffix := r.str("suffix")
		if r.err != nil {
			return nil, fmt.Errorf("bucket %d: %w", i, r.err)
		}
		if key == "" {
			continue
		}
		m[key] = prefix + suffix
	}
	if log.V(1) {
		clog.Infof(ctx, "hmap: %d entries", len(m))
	}
	return m, nil
}

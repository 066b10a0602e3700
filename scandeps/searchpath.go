// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// SearchPath is the header search context of one compilation unit.
type SearchPath struct {
	// WorkDir is the working directory of the compiler invocation.
	WorkDir string `json:"workdir"`

	// Quoted is search path for `#include "..."`.
	// It starts with the directory of the source file,
	// followed by -iquote dirs.
	Quoted []string `json:"quoted"`

	// Angle is search path for `#include <...>`, and fallback for
	// `#include "..."`.
	// -I dirs, -isystem dirs, toolchain default dirs, then -idirafter dirs.
	// Entries ending with ".hmap" are header maps.
	Angle []string `json:"angle"`

	// Includes are forced include files (-include).
	Includes []string `json:"includes,omitempty"`

	// Defines are -D and -U flags in command line order,
	// e.g. "-DFOO=1", "-UBAR".
	Defines []string `json:"defines,omitempty"`

	// Std is the language standard (-std=).
	Std string `json:"std,omitempty"`

	// NoStdInc is true if default include dirs are disabled.
	NoStdInc bool `json:"nostdinc,omitempty"`
}

// Macros returns values of macros defined on the command line that can
// be used in `#include MACRO`, honoring -U.
func (sp SearchPath) Macros() map[string][]string {
	macros := make(map[string][]string)
	for _, flag := range sp.Defines {
		switch {
		case strings.HasPrefix(flag, "-U"):
			delete(macros, strings.TrimPrefix(flag, "-U"))
		case strings.HasPrefix(flag, "-D"):
			name, value, ok := strings.Cut(strings.TrimPrefix(flag, "-D"), "=")
			if !ok {
				delete(macros, name)
				continue
			}
			v := MacroValue(value)
			if v == "" {
				delete(macros, name)
				continue
			}
			macros[name] = []string{v}
		}
	}
	return macros
}

// Fingerprint is a cache key of a resolution.
// Two resolutions with the same fingerprint resolve to the same result.
type Fingerprint [16]byte

// String returns hex form of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText encodes f in hex form.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes hex form of the fingerprint.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	v, err := ParseFingerprint(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFingerprint parses hex form of the fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("bad fingerprint %q: %w", s, err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("bad fingerprint %q: length %d", s, len(b))
	}
	copy(f[:], b)
	return f, nil
}

type fingerprinter struct {
	h   *xxh3.Hasher
	buf [binary.MaxVarintLen64]byte
}

func (fp *fingerprinter) str(s string) {
	n := binary.PutUvarint(fp.buf[:], uint64(len(s)))
	fp.h.Write(fp.buf[:n])
	fp.h.WriteString(s)
}

func (fp *fingerprinter) strs(tag string, ss []string) {
	fp.str(tag)
	n := binary.PutUvarint(fp.buf[:], uint64(len(ss)))
	fp.h.Write(fp.buf[:n])
	for _, s := range ss {
		fp.str(s)
	}
}

// computeFingerprint computes fingerprint of the resolution of
// the source in srcDir with content digest under sp.
func computeFingerprint(srcDir string, digest xxh3.Uint128, sp SearchPath) Fingerprint {
	fp := &fingerprinter{h: xxh3.New()}
	fp.str("compdb-resolve-v1")
	fp.str(srcDir)
	d := digest.Bytes()
	fp.h.Write(d[:])
	fp.str(sp.WorkDir)
	fp.strs("quoted", sp.Quoted)
	fp.strs("angle", sp.Angle)
	fp.strs("includes", sp.Includes)
	fp.strs("defines", sp.Defines)
	fp.str(sp.Std)
	if sp.NoStdInc {
		fp.str("nostdinc")
	}
	return Fingerprint(fp.h.Sum128().Bytes())
}

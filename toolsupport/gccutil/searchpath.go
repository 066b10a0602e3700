// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/scandeps"
)

// ErrMalformedFlags is returned when command line flags can't be parsed.
var ErrMalformedFlags = errors.New("malformed flags")

// Params is a compiler invocation to compute header search path for.
type Params struct {
	// Args is command line of the compiler invocation.
	// Args[0] is the compiler.
	Args []string

	// WorkDir is an absolute path of the working directory of the invocation.
	WorkDir string

	// Source is the source file.
	// Relative path is relative to WorkDir.
	Source string

	// DefaultIncludes are the toolchain's default include dirs,
	// searched after -isystem dirs unless -nostdinc is given.
	DefaultIncludes []string
}

// SourcePath returns the absolute path of the source.
func (p Params) SourcePath() string {
	return absPath(p.WorkDir, p.Source)
}

// Fallback returns best-effort search path used when flags are malformed.
func (p Params) Fallback() scandeps.SearchPath {
	return scandeps.SearchPath{
		WorkDir: p.WorkDir,
		Quoted:  []string{p.WorkDir},
	}
}

func absPath(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

// flags that take a value in the next arg, but not relevant to include.
var skipValueFlags = map[string]bool{
	"-o":             true,
	"-MF":            true,
	"-MT":            true,
	"-MQ":            true,
	"-x":             true,
	"-Xclang":        true,
	"-Xlinker":       true,
	"-Xassembler":    true,
	"-Xpreprocessor": true,
	"-target":        true,
	"-arch":          true,
	"-isysroot":      true,
	"-imacros":       true,
	"-include-pch":   true,
	"--param":        true,
}

// searchPathBuilder accumulates search path flags in command line order.
type searchPathBuilder struct {
	workDir  string
	quote    []string
	user     []string
	system   []string
	after    []string
	includes []string
	defines  []string
	std      string
	nostdinc bool
}

func (b *searchPathBuilder) dir(list *[]string, dir string) {
	*list = append(*list, absPath(b.workDir, dir))
}

func (b *searchPathBuilder) searchPath(src string, defaultIncludes []string) scandeps.SearchPath {
	sp := scandeps.SearchPath{
		WorkDir:  b.workDir,
		Quoted:   append([]string{filepath.Dir(src)}, b.quote...),
		Includes: b.includes,
		Defines:  b.defines,
		Std:      b.std,
		NoStdInc: b.nostdinc,
	}
	sp.Angle = append(sp.Angle, b.user...)
	sp.Angle = append(sp.Angle, b.system...)
	if !b.nostdinc {
		for _, dir := range defaultIncludes {
			sp.Angle = append(sp.Angle, filepath.Clean(dir))
		}
	}
	sp.Angle = append(sp.Angle, b.after...)
	return sp
}

// SearchPath parses gcc/clang command line and returns the header
// search path for the invocation.
// Flags are applied in command line order, and later -I dirs are
// appended to earlier ones.
// It only parses flags relevant to header search.
// full set of command line flags for include dirs can be found in
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
//
// If flags are malformed, it returns p.Fallback() and an error
// wrapping ErrMalformedFlags.
func SearchPath(ctx context.Context, p Params) (scandeps.SearchPath, error) {
	if len(p.Args) == 0 {
		return p.Fallback(), fmt.Errorf("%w: empty command line", ErrMalformedFlags)
	}
	b := &searchPathBuilder{workDir: p.WorkDir}
	args := p.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func() (string, bool) {
			if i+1 >= len(args) {
				return "", false
			}
			i++
			return args[i], true
		}
		switch arg {
		case "-I", "--include-directory", "-isystem", "-iquote", "-idirafter", "-include", "-D", "-U":
			v, ok := value()
			if !ok || v == "" {
				return p.Fallback(), fmt.Errorf("%w: %s needs value", ErrMalformedFlags, arg)
			}
			b.apply(arg, v)
			continue
		case "-nostdinc", "-nostdinc++":
			b.nostdinc = true
			continue
		}
		if skipValueFlags[arg] {
			if _, ok := value(); !ok {
				return p.Fallback(), fmt.Errorf("%w: %s needs value", ErrMalformedFlags, arg)
			}
			continue
		}
		switch {
		case strings.HasPrefix(arg, "--include-directory="):
			v := strings.TrimPrefix(arg, "--include-directory=")
			if v == "" {
				return p.Fallback(), fmt.Errorf("%w: %s", ErrMalformedFlags, arg)
			}
			b.apply("-I", v)
		case strings.HasPrefix(arg, "-std="):
			b.std = strings.TrimPrefix(arg, "-std=")
		default:
			for _, f := range []string{"-isystem", "-iquote", "-idirafter", "-include", "-I", "-D", "-U"} {
				if strings.HasPrefix(arg, f) {
					b.apply(f, strings.TrimPrefix(arg, f))
					break
				}
			}
		}
	}
	sp := b.searchPath(p.SourcePath(), p.DefaultIncludes)
	if log.V(1) {
		clog.Infof(ctx, "searchpath %s: quoted=%q angle=%q", p.Source, sp.Quoted, sp.Angle)
	}
	return sp, nil
}

func (b *searchPathBuilder) apply(flag, v string) {
	switch flag {
	case "-I", "--include-directory":
		b.dir(&b.user, v)
	case "-isystem":
		b.dir(&b.system, v)
	case "-iquote":
		b.dir(&b.quote, v)
	case "-idirafter":
		b.dir(&b.after, v)
	case "-include":
		b.includes = append(b.includes, v)
	case "-D", "-U":
		b.defines = append(b.defines, flag+v)
	}
}

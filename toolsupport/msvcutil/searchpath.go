// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package msvcutil

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
)

// IsCL reports whether the compiler argv0 takes cl style flags,
// i.e. cl.exe or clang-cl.
func IsCL(argv0 string) bool {
	name := strings.ToLower(filepath.Base(strings.ReplaceAll(argv0, `\`, "/")))
	name = strings.TrimSuffix(name, ".exe")
	return name == "cl" || name == "clang-cl"
}

// cl flags that take a value, and the corresponding gcc flags.
// The value may be joined to the flag or in the next arg.
var clFlags = []struct {
	cl, gcc string
}{
	// longer flags first, as they are matched by prefix.
	{"/external:I", "-isystem"},
	{"-external:I", "-isystem"},
	{"/imsvc", "-isystem"},
	{"-imsvc", "-isystem"},
	{"-isystem", "-isystem"},
	{"/FI", "-include"},
	{"-FI", "-include"},
	{"/I", "-I"},
	{"-I", "-I"},
	{"/D", "-D"},
	{"-D", "-D"},
	{"/U", "-U"},
	{"-U", "-U"},
}

// SearchPath parses cl or clang-cl command line and returns the header
// search path for the invocation.
// It translates include relevant cl flags into gcc flags and
// parses them by gccutil.SearchPath.
// full set of command line flags for include dirs can be found in
// https://learn.microsoft.com/en-us/cpp/build/reference/compiler-options-listed-by-category?view=msvc-170
func SearchPath(ctx context.Context, p gccutil.Params) (scandeps.SearchPath, error) {
	if len(p.Args) == 0 {
		return p.Fallback(), fmt.Errorf("%w: empty command line", gccutil.ErrMalformedFlags)
	}
	gargs := []string{p.Args[0]}
	args := p.Args[1:]
	src := filepath.Clean(p.SourcePath())
argLoop:
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if filepath.IsAbs(arg) && filepath.Clean(arg) == src {
			continue
		}
		switch arg {
		case "/X", "-X":
			gargs = append(gargs, "-nostdinc")
			continue
		case "-Xclang":
			// -Xclang value is passed to clang as is.
			if i+1 >= len(args) {
				return p.Fallback(), fmt.Errorf("%w: %s needs value", gccutil.ErrMalformedFlags, arg)
			}
			i++
			continue
		}
		if v, ok := strings.CutPrefix(arg, "/std:"); ok {
			gargs = append(gargs, "-std="+v)
			continue
		}
		for _, f := range clFlags {
			if !strings.HasPrefix(arg, f.cl) {
				continue
			}
			v := strings.TrimPrefix(arg, f.cl)
			if v == "" {
				if i+1 >= len(args) || args[i+1] == "" {
					return p.Fallback(), fmt.Errorf("%w: %s needs value", gccutil.ErrMalformedFlags, arg)
				}
				i++
				v = args[i]
			}
			if f.gcc != "-D" && f.gcc != "-U" {
				v = normalizePath(v)
			}
			gargs = append(gargs, f.gcc+v)
			continue argLoop
		}
	}
	return gccutil.SearchPath(ctx, gccutil.Params{
		Args:            gargs,
		WorkDir:         p.WorkDir,
		Source:          p.Source,
		DefaultIncludes: p.DefaultIncludes,
	})
}

func normalizePath(v string) string {
	if runtime.GOOS == "windows" {
		return v
	}
	return strings.ReplaceAll(v, `\`, "/")
}

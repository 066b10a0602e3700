// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package msvcutil provides utilities of msvc and clang-cl.
package msvcutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.chromium.org/infra/build/compdb/execute"
	"go.chromium.org/infra/build/compdb/execute/localexec"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/runtimex"
	"go.chromium.org/infra/build/compdb/sync/semaphore"
	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
)

// msvc may localized text, but we assume developers don't use that.
const depsPrefix = "Note: including file: "

// ParseShowIncludes parses /showIncludes outputs, and returns a list of inputs and other outputs.
// The source file name that cl prints in the first line is dropped.
func ParseShowIncludes(b []byte) ([]string, []byte) {
	// showIncludes contents
	//  Note: including file:  <pathname>\r\n
	//
	// other lines will be normal stdout/stderr (e.g. compiler error message)
	var deps []string
	var outs []byte
	s := b
	first := true
	for len(s) > 0 {
		line := s
		i := bytes.IndexAny(s, "\r\n")
		if i >= 0 {
			line = line[:i]
			s = s[i:]
		} else {
			s = nil
		}
		isFirst := first
		first = false
		if bytes.HasPrefix(line, []byte(depsPrefix)) || (isFirst && isSourceName(line)) {
			if bytes.HasPrefix(line, []byte(depsPrefix)) {
				line = bytes.TrimPrefix(line, []byte(depsPrefix))
				line = bytes.TrimSpace(line)
				deps = append(deps, string(line))
			}
			if bytes.HasPrefix(s, []byte("\r")) {
				s = s[1:]
			}
			if bytes.HasPrefix(s, []byte("\n")) {
				s = s[1:]
			}
			continue
		}
		outs = append(outs, line...)
		if bytes.HasPrefix(s, []byte("\r")) {
			outs = append(outs, '\r')
			s = s[1:]
		}
		if bytes.HasPrefix(s, []byte("\n")) {
			outs = append(outs, '\n')
			s = s[1:]
		}
	}
	return deps, outs
}

func isSourceName(line []byte) bool {
	if bytes.ContainsAny(line, " \t") {
		return false
	}
	return isSource(string(line))
}

func isSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".c", ".cc", ".cxx", ".cpp", ".s", ".asm":
		return true
	}
	return false
}

// Semaphore limits concurrent compiler runs to get deps.
var Semaphore = semaphore.New("deps-msvc", runtimex.NumCPU()*2)

// DepsArgs returns command line args to get deps for args.
// It preprocesses with /P instead of compile, and adds /showIncludes.
func DepsArgs(args []string) []string {
	var dargs []string
	hasShowIncludes := false
	for _, arg := range args {
		switch arg {
		case "/showIncludes:user", "-showIncludes:user":
			dargs = append(dargs, "/showIncludes")
			hasShowIncludes = true
			continue
		case "/showIncludes", "-showIncludes":
			hasShowIncludes = true
		case "/c", "-c":
			dargs = append(dargs, "/P")
			continue
		}
		switch {
		case strings.HasPrefix(arg, "/Fo"), strings.HasPrefix(arg, "-Fo"):
			continue
		case strings.HasPrefix(arg, "/Fd"), strings.HasPrefix(arg, "-Fd"):
			continue
		}
		dargs = append(dargs, arg)
	}
	if !hasShowIncludes {
		dargs = append(dargs, "/showIncludes")
	}
	return dargs
}

// Deps runs command specified by args, env, cwd and returns deps.
// Relative deps are resolved against cwd.
func Deps(ctx context.Context, args, env []string, cwd string) ([]string, error) {
	s := time.Now()
	var out string
	for _, arg := range args {
		// /P generates *.i in the current dir
		if isSource(arg) {
			out = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)) + ".i"
		}
	}
	cmd := &execute.Cmd{
		ID:   "deps-msvc",
		Args: args,
		Env:  env,
		Dir:  cwd,
	}
	var wait time.Duration
	err := Semaphore.Do(ctx, func(ctx context.Context) error {
		wait = time.Since(s)
		return localexec.Run(ctx, cmd)
	})
	if out != "" {
		if rerr := os.Remove(filepath.Join(cwd, out)); rerr != nil && !os.IsNotExist(rerr) {
			clog.Warningf(ctx, "failed to remove %s: %v", filepath.Join(cwd, out), rerr)
		}
	}
	if err != nil {
		clog.Warningf(ctx, "failed to run %q: %v\n%s\n%s", args, err, cmd.Stdout(), cmd.Stderr())
		return nil, err
	}
	// cl.exe writes /showIncludes to stdout, clang-cl to stderr.
	deps, extra := ParseShowIncludes(cmd.Stdout())
	edeps, eextra := ParseShowIncludes(cmd.Stderr())
	deps = append(deps, edeps...)
	clog.Infof(ctx, "msvc deps -> deps:%d extra:%q %s (wait:%s)", len(deps), append(extra, eextra...), time.Since(s), wait)
	for i := range deps {
		deps[i] = filepath.FromSlash(strings.ReplaceAll(deps[i], `\`, "/"))
	}
	return gccutil.AbsDeps(cwd, deps), nil
}

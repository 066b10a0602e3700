// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gccutil provides utilities of gcc and clang.
package gccutil

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.chromium.org/infra/build/compdb/execute"
	"go.chromium.org/infra/build/compdb/execute/localexec"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/runtimex"
	"go.chromium.org/infra/build/compdb/sync/semaphore"
	"go.chromium.org/infra/build/compdb/toolsupport/makeutil"
)

// Semaphore limits concurrent compiler runs to get deps.
var Semaphore = semaphore.New("deps-gcc", runtimex.NumCPU()*2)

// DepsArgs returns command line args to get deps for args.
// It replaces compile and depfile flags with -M, so the compiler
// only preprocesses and writes deps to stdout.
func DepsArgs(args []string) []string {
	var dargs []string
	skip := false
	for _, arg := range args {
		if skip {
			skip = false
			continue
		}
		switch arg {
		case "-MD", "-MMD", "-MP", "-c":
			continue
		case "-MF", "-MT", "-MQ", "-o":
			skip = true
			continue
		}
		if strings.HasPrefix(arg, "-MF") || strings.HasPrefix(arg, "-MT") || strings.HasPrefix(arg, "-MQ") {
			continue
		}
		if strings.HasPrefix(arg, "-o") {
			continue
		}
		dargs = append(dargs, arg)
	}
	dargs = append(dargs, "-M")
	return dargs
}

// Depfile returns the depfile specified by -MF in args, or "".
func Depfile(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-MF" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "-MF") && len(arg) > len("-MF"):
			return strings.TrimPrefix(arg, "-MF")
		}
	}
	return ""
}

// Deps runs command specified by args, env, cwd and returns deps.
// Relative deps are resolved against cwd.
func Deps(ctx context.Context, args []string, env []string, cwd string) ([]string, error) {
	s := time.Now()
	cmd := &execute.Cmd{
		ID:   "deps-gcc",
		Args: args,
		Env:  env,
		Dir:  cwd,
	}
	var wait time.Duration
	err := Semaphore.Do(ctx, func(ctx context.Context) error {
		wait = time.Since(s)
		return localexec.Run(ctx, cmd)
	})
	if err != nil {
		clog.Warningf(ctx, "failed to run %q: %v\n%s\n%s", args, err, cmd.Stdout(), cmd.Stderr())
		return nil, err
	}
	stdout := cmd.Stdout()
	if len(stdout) == 0 {
		clog.Warningf(ctx, "failed to run gcc deps? stdout:0 args:%q\nstderr:%s", cmd.Args, cmd.Stderr())
	}
	deps := makeutil.ParseDeps(stdout)
	clog.Infof(ctx, "gcc deps stdout:%d -> deps:%d: %s (wait:%s)", len(stdout), len(deps), time.Since(s), wait)
	return AbsDeps(cwd, deps), nil
}

// AbsDeps returns deps as clean absolute paths, resolved against cwd.
func AbsDeps(cwd string, deps []string) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if !filepath.IsAbs(d) {
			d = filepath.Join(cwd, d)
		}
		out = append(out, filepath.Clean(d))
	}
	return out
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package localexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.chromium.org/infra/build/compdb/execute"
)

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	ctx := context.Background()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "a.h"), []byte("// a.h\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	cmd := &execute.Cmd{
		ID:   "test",
		Args: []string{"/bin/sh", "-c", "cat a.h; echo err >&2"},
		Dir:  dir,
	}
	err = Run(ctx, cmd)
	if err != nil {
		t.Fatalf("Run(ctx, %q)=%v; want nil err", cmd.Args, err)
	}
	if got, want := string(cmd.Stdout()), "// a.h\n"; got != want {
		t.Errorf("stdout=%q; want %q", got, want)
	}
	if got, want := string(cmd.Stderr()), "err\n"; got != want {
		t.Errorf("stderr=%q; want %q", got, want)
	}
	if got := cmd.ExitCode(); got != 0 {
		t.Errorf("ExitCode()=%d; want 0", got)
	}
}

func TestRun_ExitError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	ctx := context.Background()
	cmd := &execute.Cmd{
		ID:   "test",
		Args: []string{"/bin/sh", "-c", "exit 3"},
		Dir:  t.TempDir(),
	}
	err := Run(ctx, cmd)
	var eerr *execute.ExitError
	if !errors.As(err, &eerr) || eerr.ExitCode != 3 {
		t.Errorf("Run(ctx, %q)=%v; want exit=3", cmd.Args, err)
	}
	if !strings.Contains(string(cmd.Stderr()), "cmd:") {
		t.Errorf("stderr=%q; want cmd info", cmd.Stderr())
	}
}

func TestRun_NoArgs(t *testing.T) {
	err := Run(context.Background(), &execute.Cmd{ID: "empty"})
	if err == nil {
		t.Errorf("Run(ctx, empty cmd)=nil; want err")
	}
}

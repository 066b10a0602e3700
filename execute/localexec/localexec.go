// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/execute"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/runtimex"
	"go.chromium.org/infra/build/compdb/sync/semaphore"
)

// Run runs cmd locally, and records its outputs in cmd.
// It returns *execute.ExitError if cmd exits with non-zero code.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	s := time.Now()
	err := forkSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err == nil {
		err = c.Wait()
	}
	code := exitCode(err)
	if code != 0 {
		fmt.Fprintf(&stderr, "\ncmd: %s dir: %q error: %v", cmd.Command(), cmd.Dir, err)
	}
	cmd.SetResult(stdout.Bytes(), stderr.Bytes(), code)
	if log.V(1) {
		clog.Infof(ctx, "%s exit=%d stdout=%d stderr=%d %s", cmd.ID, code, stdout.Len(), stderr.Len(), time.Since(s))
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if code != 0 {
		return &execute.ExitError{ExitCode: code}
	}
	return nil
}

// forkSema limits concurrent process starts.
var forkSema = semaphore.New("fork", runtimex.NumCPU())

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		return w.ExitStatus()
	}
	return 1
}

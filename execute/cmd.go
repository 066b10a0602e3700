// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs compiler commands.
package execute

import (
	"fmt"

	"go.chromium.org/infra/build/compdb/toolsupport/shutil"
)

// Cmd is a compiler invocation to run.
type Cmd struct {
	// ID is used as a unique identifier for this cmd in logs.
	ID string

	// Desc is a short, human-readable description of the cmd.
	// Example: "DEPS base/a.cc"
	Desc string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// If nil, it inherits the current process's environment.
	Env []string

	// Dir is an absolute path of the working directory of the cmd.
	Dir string

	stdout, stderr []byte
	exitCode       int
}

// String returns an ID of the cmd.
func (c *Cmd) String() string {
	return c.ID
}

// Command returns a command line string.
func (c *Cmd) Command() string {
	return shutil.Join(c.Args)
}

// SetResult records outputs and exit code of a run.
func (c *Cmd) SetResult(stdout, stderr []byte, exitCode int) {
	c.stdout = stdout
	c.stderr = stderr
	c.exitCode = exitCode
}

// Stdout returns stdout output of the cmd.
func (c *Cmd) Stdout() []byte {
	return c.stdout
}

// Stderr returns stderr output of the cmd.
// cl.exe writes /showIncludes output to stdout, and
// clang-cl writes it to stderr.
func (c *Cmd) Stderr() []byte {
	return c.stderr
}

// ExitCode returns exit code of the cmd.
func (c *Cmd) ExitCode() int {
	return c.exitCode
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides POSIX shell command line utilities for
// the "command" field of compile_commands.json.
package shutil

import (
	"fmt"
	"strings"
)

// Split splits a command line into argv.
// It understands single quotes, double quotes and backslash escapes,
// and returns error for command lines that need a real shell to run
// (pipes, redirects, variable expansions, command lists).
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	inArg := false
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch ch {
		case ' ', '\t', '\n':
			if inArg {
				args = append(args, sb.String())
				sb.Reset()
				inArg = false
			}
		case '\\':
			if i+1 >= len(cmdline) {
				return nil, fmt.Errorf("failed to split: trailing backslash in %q", cmdline)
			}
			i++
			sb.WriteByte(cmdline[i])
			inArg = true
		case '\'':
			j := strings.IndexByte(cmdline[i+1:], '\'')
			if j < 0 {
				return nil, fmt.Errorf("failed to split: unterminated single quote in %q", cmdline)
			}
			sb.WriteString(cmdline[i+1 : i+1+j])
			i += j + 1
			inArg = true
		case '"':
			i++
			for ; i < len(cmdline) && cmdline[i] != '"'; i++ {
				c := cmdline[i]
				switch c {
				case '\\':
					if i+1 >= len(cmdline) {
						return nil, fmt.Errorf("failed to split: unterminated double quote in %q", cmdline)
					}
					switch cmdline[i+1] {
					case '"', '\\', '$', '`':
						i++
						c = cmdline[i]
					}
				case '$', '`':
					return nil, fmt.Errorf("failed to split: cmdline contains shell expansion %c", c)
				}
				sb.WriteByte(c)
			}
			if i >= len(cmdline) {
				return nil, fmt.Errorf("failed to split: unterminated double quote in %q", cmdline)
			}
			inArg = true
		case ';', '&', '|', '<', '>', '$', '`', '(', ')':
			return nil, fmt.Errorf("failed to split: cmdline contains shell metachar %c", ch)
		case '#':
			if !inArg {
				return nil, fmt.Errorf("failed to split: cmdline contains comment")
			}
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
			inArg = true
		}
	}
	if inArg {
		args = append(args, sb.String())
	}
	if len(args) >= 1 && strings.Contains(args[0], "=") {
		// initial args sets env var, and needs to be invoked via sh.
		return nil, fmt.Errorf("argv[0] is env set %q", args[0])
	}
	return args, nil
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package cmdutil

import (
	"errors"
	"strings"
)

// Split splits cmd.exe's cmdline with the rules of CommandLineToArgvW,
// so compilation databases generated on Windows can be read elsewhere.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	inArg := false
	inQuote := false
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch {
		case ch == '\\':
			n := 0
			for i < len(cmdline) && cmdline[i] == '\\' {
				n++
				i++
			}
			inArg = true
			if i < len(cmdline) && cmdline[i] == '"' {
				sb.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					sb.WriteByte('"')
					continue
				}
			} else {
				sb.WriteString(strings.Repeat(`\`, n))
			}
			// reprocess cmdline[i].
			i--
		case ch == '"':
			inArg = true
			if inQuote && i+1 < len(cmdline) && cmdline[i+1] == '"' {
				sb.WriteByte('"')
				i++
				continue
			}
			inQuote = !inQuote
		case (ch == ' ' || ch == '\t') && !inQuote:
			if inArg {
				args = append(args, sb.String())
				sb.Reset()
				inArg = false
			}
		default:
			inArg = true
			sb.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, sb.String())
	}
	return args, nil
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides utilities for make style depfiles.
package makeutil

import (
	"context"
	"os"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
)

// ParseDepsFile parses the depfile fname.
func ParseDepsFile(ctx context.Context, fname string) ([]string, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	deps := ParseDeps(b)
	if log.V(1) {
		clog.Infof(ctx, "deps %s => %q", fname, deps)
	}
	return deps, nil
}

// ParseDeps parses depfile contents and returns prerequisites of
// the first rule.
// Rules following the first one, e.g. phony targets generated by -MP,
// are ignored.
func ParseDeps(b []byte) []string {
	// depfile contents
	// <target>: <input> ...
	// <input> is space separated
	// '\'+newline is space
	// '\'+space is escaped space (not separator)
	var token string
	s := b
	inTarget := true
	var inputs []string
	for len(s) > 0 {
		token, s = nextToken(s)
		if token == "" {
			continue
		}
		if inTarget {
			if strings.HasSuffix(token, ":") {
				inTarget = false
			}
			continue
		}
		if token == ":" {
			// the last token was a target of the next rule.
			if len(inputs) > 0 {
				inputs = inputs[:len(inputs)-1]
			}
			break
		}
		if strings.HasSuffix(token, ":") {
			// start of the next rule.
			break
		}
		inputs = append(inputs, token)
	}
	if inTarget {
		return nil
	}
	return inputs
}

func nextToken(s []byte) (string, []byte) {
	var sb strings.Builder
	// skip spaces
skipSpaces:
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			s = s[i:]
			break skipSpaces
		}
	}
	// extract next space not escaped
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ':
				sb.WriteByte(s[i])
			case '\r', '\n':
				// '\'+newline is space
				return sb.String(), s[i+1:]
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			return sb.String(), s[i+1:]
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}

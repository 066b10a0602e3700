// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil

import "strings"

// Join joins args to a single command line that Split can split back.
func Join(args []string) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(quote(arg))
	}
	return sb.String()
}

func quote(arg string) string {
	if arg == "" {
		return `''`
	}
	if !strings.ContainsAny(arg, " \t\n\\'\"#;&|<>$`()*?[]{}~") {
		return arg
	}
	return `'` + strings.ReplaceAll(arg, `'`, `'\''`) + `'`
}

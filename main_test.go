// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"runtime/debug"
	"testing"
)

func TestCompdbMain_Version(t *testing.T) {
	if code := compdbMain([]string{"version"}); code != 0 {
		t.Errorf("compdbMain(version)=%d; want 0", code)
	}
}

func TestModuleInfo(t *testing.T) {
	m := &debug.Module{
		Path:    "go.chromium.org/infra/build/compdb",
		Version: "(devel)",
		Replace: &debug.Module{Path: "../compdb"},
	}
	want := "path:go.chromium.org/infra/build/compdb version:(devel) sum: replace:path:../compdb version: sum: replace:<nil>"
	if got := moduleInfo(m); got != want {
		t.Errorf("moduleInfo(m)=%q; want %q", got, want)
	}
}

func TestVCSInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	want := "vcs[revision=abc time=2026-01-02T03:04:05Z modified=true]"
	if got := vcsInfo(bi); got != want {
		t.Errorf("vcsInfo(bi)=%q; want %q", got, want)
	}
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package msvcutil_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/compdb/toolsupport/msvcutil"
)

func TestParseShowIncludes(t *testing.T) {
	inputs, out := msvcutil.ParseShowIncludes([]byte("Note: including file: ../../base/features.h\r\n" +
		"Note: including file:  ../../base/base_export.h\r\n" +
		"Note: including file:  ../../base/feature_list.h\r\n" +
		"Note: including file:   ../../buildtools/third_party/libc++/trunk/include\\atomic\r\n" +
		"In file included from ../../base/version.cc\r\n" +
		"In file included from ../../base/feature_list.h\r\n" +
		"fatal error: 'functional' not found\r\n" +
		"#include <functional>\r\n" +
		"         ^~~~~~~~~~~~\r\n"))
	wantInputs := []string{
		"../../base/features.h",
		"../../base/base_export.h",
		"../../base/feature_list.h",
		`../../buildtools/third_party/libc++/trunk/include\atomic`,
	}
	if diff := cmp.Diff(wantInputs, inputs); diff != "" {
		t.Errorf("msvcutil.ParseShowIncludes(...); inputs diff -want +got:\n%s", diff)
	}
	wantOut := []byte(`In file included from ../../base/version.cc
In file included from ../../base/feature_list.h
fatal error: 'functional' not found
#include <functional>
         ^~~~~~~~~~~~
`)
	wantOut = bytes.ReplaceAll(wantOut, []byte("\n"), []byte("\r\n"))
	if !bytes.Equal(wantOut, out) {
		t.Errorf("msvcutil.ParseShowIncludes(...) got:\n%q\nwant:\n%q", out, wantOut)
	}
}

func TestParseShowIncludes_filename(t *testing.T) {
	for _, tc := range []struct {
		name       string
		stdout     []byte
		wantInputs []string
		wantOut    []byte
	}{
		{
			name:    "filterFilename",
			stdout:  []byte("foo.cc\r\ncl: warning\r\n"),
			wantOut: []byte("cl: warning\r\n"),
		},
		{
			name:       "keepFilenameAfterShowIncludes",
			stdout:     []byte("foo.cc\r\nNote: including file: foo.h\r\nsomething something foo.cc\r\n"),
			wantInputs: []string{"foo.h"},
			wantOut:    []byte("something something foo.cc\r\n"),
		},
		{
			name:       "lfOnly",
			stdout:     []byte("foo.cc\nNote: including file: foo.h\n\nfoo.cc(3): error C1083\n"),
			wantInputs: []string{"foo.h"},
			wantOut:    []byte("\nfoo.cc(3): error C1083\n"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inputs, out := msvcutil.ParseShowIncludes(tc.stdout)
			if diff := cmp.Diff(tc.wantInputs, inputs); diff != "" {
				t.Errorf("msvcutil.ParseShowIncludes(...); inputs diff -want +got:\n%s", diff)
			}
			if !bytes.Equal(tc.wantOut, out) {
				t.Errorf("msvcutil.ParseShowIncludes(...) got:\n%q\nwant:\n%q", out, tc.wantOut)
			}
		})
	}
}

func TestDepsArgs(t *testing.T) {
	args := []string{
		"clang-cl.exe",
		"/c",
		"../../base/base64.cc",
		"/Foobj/base/base/base64.obj",
		"/showIncludes:user",
		"-I../..",
		"/Fdobj/base/base64_cc.pdb",
	}
	want := []string{
		"clang-cl.exe",
		"/P",
		"../../base/base64.cc",
		"/showIncludes",
		"-I../..",
	}
	got := msvcutil.DepsArgs(args)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("msvcutil.DepsArgs(%q) diff -want +got:\n%s", args, diff)
	}

	got = msvcutil.DepsArgs([]string{"cl.exe", "/c", "a.cc"})
	if diff := cmp.Diff([]string{"cl.exe", "/P", "a.cc", "/showIncludes"}, got); diff != "" {
		t.Errorf("msvcutil.DepsArgs diff -want +got:\n%s", diff)
	}
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
)

func TestDepsArgs(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "separateFlag",
			args: []string{
				"../../third_party/llvm-build/Release+Asserts/bin/clang++",
				"-MMD",
				"-MF",
				"obj/base/version.o.d",
				"-c",
				"../../base/version.cc",
				"-o",
				"obj/base/version.o",
			},
			want: []string{
				"../../third_party/llvm-build/Release+Asserts/bin/clang++",
				"../../base/version.cc",
				"-M",
			},
		},
		{
			name: "joinedFlag",
			args: []string{
				"../../third_party/llvm-build/Release+Asserts/bin/clang++",
				"-MMD",
				"-MFobj/base/version.o.d",
				"-c",
				"../../base/version.cc",
				"-oobj/base/version.o",
			},
			want: []string{
				"../../third_party/llvm-build/Release+Asserts/bin/clang++",
				"../../base/version.cc",
				"-M",
			},
		},
		{
			name: "targetFlags",
			args: []string{
				"gcc",
				"-MD",
				"-MP",
				"-MT",
				"version.o",
				"-MQversion.o",
				"-I../..",
				"-c",
				"../../base/version.cc",
			},
			want: []string{
				"gcc",
				"-I../..",
				"../../base/version.cc",
				"-M",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := gccutil.DepsArgs(tc.args)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("gccutil.DepsArgs(%q): diff (-want +got):\n%s", tc.args, diff)
			}
		})
	}
}

func TestDepfile(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{
			args: []string{"clang++", "-MMD", "-MF", "obj/a.o.d", "-c", "a.cc"},
			want: "obj/a.o.d",
		},
		{
			args: []string{"clang++", "-MMD", "-MFobj/a.o.d", "-c", "a.cc"},
			want: "obj/a.o.d",
		},
		{
			args: []string{"clang++", "-c", "a.cc"},
		},
		{
			args: []string{"clang++", "-c", "a.cc", "-MF"},
		},
	} {
		if got := gccutil.Depfile(tc.args); got != tc.want {
			t.Errorf("gccutil.Depfile(%q)=%q; want %q", tc.args, got, tc.want)
		}
	}
}

func TestAbsDeps(t *testing.T) {
	got := gccutil.AbsDeps("/src/out", []string{"../base/a.cc", "/usr/include/stdio.h", "gen/b.h"})
	want := []string{"/src/base/a.cc", "/usr/include/stdio.h", "/src/out/gen/b.h"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("gccutil.AbsDeps diff -want +got:\n%s", diff)
	}
}

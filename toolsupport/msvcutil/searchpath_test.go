// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package msvcutil

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/compdb/scandeps"
	"go.chromium.org/infra/build/compdb/toolsupport/gccutil"
)

func TestIsCL(t *testing.T) {
	for _, tc := range []struct {
		argv0 string
		want  bool
	}{
		{`..\..\third_party\llvm-build\Release+Asserts\bin\clang-cl.exe`, true},
		{"../../third_party/llvm-build/Release+Asserts/bin/clang-cl", true},
		{`C:\Program Files\Microsoft Visual Studio\VC\bin\CL.EXE`, true},
		{"cl", true},
		{"clang++", false},
		{"/usr/bin/gcc", false},
		{"clang", false},
	} {
		if got := IsCL(tc.argv0); got != tc.want {
			t.Errorf("IsCL(%q)=%t; want %t", tc.argv0, got, tc.want)
		}
	}
}

func TestSearchPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses posix paths")
	}
	ctx := context.Background()
	root := "/src/chromium"
	out := filepath.Join(root, "out/Default")
	p := func(fname string) string { return filepath.Join(root, fname) }
	defaults := []string{"/toolchain/VC/include"}

	for _, tc := range []struct {
		name string
		args []string
		want scandeps.SearchPath
	}{
		{
			name: "clang-cl.exe",
			args: []string{
				`..\..\third_party\llvm-build\Release+Asserts\bin\clang-cl.exe`,
				"/c",
				"../../base/base64.cc",
				"/Foobj/base/base/base64.obj",
				"/nologo",
				"/showIncludes:user",
				"/winsysroot../../third_party/depot_tools/win_toolchain/vs_files/27370823e7",
				"-DDCHECK_ALWAYS_ON=1",
				`-DCR_CLANG_REVISION="llvmorg-17-init-10134-g3da83fba-1"`,
				"-I../..",
				"-Igen",
				`-I..\..\buildtools\third_party\libc++`,
				"-imsvc../../third_party/depot_tools/win_toolchain/vs_files/27370823e7/VC/Tools/MSVC/include",
				"-D__DATE_=",
				"/FIcompat/msvcrt/snprintf.h",
				"/std:c++20",
				"/Fdobj/base/base64_cc.pdb",
			},
			want: scandeps.SearchPath{
				WorkDir: out,
				Quoted:  []string{p("base")},
				Angle: []string{
					root,
					p("out/Default/gen"),
					p("buildtools/third_party/libc++"),
					p("third_party/depot_tools/win_toolchain/vs_files/27370823e7/VC/Tools/MSVC/include"),
					"/toolchain/VC/include",
				},
				Includes: []string{"compat/msvcrt/snprintf.h"},
				Defines: []string{
					"-DDCHECK_ALWAYS_ON=1",
					`-DCR_CLANG_REVISION="llvmorg-17-init-10134-g3da83fba-1"`,
					"-D__DATE_=",
				},
				Std: "c++20",
			},
		},
		{
			name: "cl-separate",
			args: []string{
				"cl.exe",
				"/nologo",
				"/I", `..\..\a`,
				"/external:I", `..\..\ext`,
				"/external:W0",
				"/D", "FOO=1",
				"/U", "BAR",
				"/FI", "pch.h",
				"/X",
				"/c", "../../base/base64.cc",
			},
			want: scandeps.SearchPath{
				WorkDir:  out,
				Quoted:   []string{p("base")},
				Angle:    []string{p("a"), p("ext")},
				Includes: []string{"pch.h"},
				Defines:  []string{"-DFOO=1", "-UBAR"},
				NoStdInc: true,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params := gccutil.Params{
				Args:            tc.args,
				WorkDir:         out,
				Source:          "../../base/base64.cc",
				DefaultIncludes: defaults,
			}
			got, err := SearchPath(ctx, params)
			if err != nil {
				t.Fatalf("SearchPath(ctx, %q)=%v, %v; want nil err", tc.args, got, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("SearchPath(ctx, %q) diff -want +got:\n%s", tc.args, diff)
			}
		})
	}
}

func TestSearchPath_Malformed(t *testing.T) {
	ctx := context.Background()
	for _, args := range [][]string{
		{},
		{"cl.exe", "/c", "a.cc", "/I"},
		{"clang-cl", "-c", "a.cc", "-imsvc"},
		{"clang-cl", "-c", "a.cc", "-Xclang"},
	} {
		params := gccutil.Params{
			Args:    args,
			WorkDir: "/src",
			Source:  "a.cc",
		}
		got, err := SearchPath(ctx, params)
		if !errors.Is(err, gccutil.ErrMalformedFlags) {
			t.Errorf("SearchPath(ctx, %q)=_, %v; want %v", args, err, gccutil.ErrMalformedFlags)
		}
		if diff := cmp.Diff(params.Fallback(), got); diff != "" {
			t.Errorf("SearchPath(ctx, %q) diff -want +got:\n%s", args, diff)
		}
	}
}

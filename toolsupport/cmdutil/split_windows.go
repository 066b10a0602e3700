// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package cmdutil

import (
	"runtime"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Split splits cmd.exe's cmdline with CommandLineToArgvW.
// An empty cmdline has no args, rather than the path of the
// current executable.
func Split(cmdline string) ([]string, error) {
	if strings.Trim(cmdline, " \t") == "" {
		return nil, nil
	}
	p, err := windows.UTF16PtrFromString(cmdline)
	if err != nil {
		return nil, err
	}
	var argc int32
	argv, err := windows.CommandLineToArgv(p, &argc)
	if err != nil {
		return nil, err
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(argv)))
	args := make([]string, 0, argc)
	for _, v := range (*argv)[:argc] {
		// each arg is NUL terminated, and may exceed the array type's length.
		args = append(args, windows.UTF16PtrToString(&v[0]))
	}
	runtime.KeepAlive(p)
	return args, nil
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps resolves the header dependencies of a C/C++
// compilation unit.
//
// It is not a C preprocessor. It only checks the following forms of
// directives, line by line,
//
//	#include "foo.h"
//	#include <foo.h>
//	#include FOO_H
//	#include_next <foo.h>
//	#import "foo.h"
//
// and, to support the macro form,
//
//	#define FOO_H "foo.h"
//	#define FOO_H <foo.h>
//	#define FOO_H OTHER_FOO_H
//
// Conditional directives are only understood for literal conditions
// (`#if 0`, `#if 1` and their `#elif`/`#else` branches). Any other
// condition is treated as taken, so all branches of `#ifdef` are
// scanned and all values of a macro are tried for `#include FOO_H`.
// Resolved dependencies may be a superset of what the compiler reads.
//
// Headers under configured system roots are treated as leaves:
// they are recorded but not scanned.
package scandeps

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package list

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/compdb/compdb"
)

func setupFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for fname, content := range files {
		fname := filepath.Join(dir, fname)
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(fname, []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newRun(t *testing.T, args ...string) (*run, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	c := &run{}
	c.init()
	err := c.Flags.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%q)=%v", args, err)
	}
	var stdout, stderr bytes.Buffer
	c.stdout = &stdout
	c.stderr = &stderr
	return c, &stdout, &stderr
}

func setupBuild(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "src/out")
	setupFiles(t, dir, map[string]string{
		"src/base/a.cc": `#include "base/a.h"
`,
		"src/base/a.h": `#pragma once
`,
		"src/base/b.cc": `#include "base/missing.h"
`,
	})
	db := []map[string]any{
		{
			"directory": out,
			"file":      "../base/a.cc",
			"arguments": []string{"clang++", "-I..", "-c", "../base/a.cc"},
		},
		{
			"directory": out,
			"file":      "../base/b.cc",
			"command":   "clang++ -I.. -c ../base/b.cc",
		},
		{
			"file":    "../base/c.cc",
			"command": "clang++ -c ../base/c.cc",
		},
	}
	buf, err := json.Marshal(db)
	if err != nil {
		t.Fatal(err)
	}
	setupFiles(t, out, map[string]string{
		compdb.Filename: string(buf),
	})
	return dir, out
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir, out := setupBuild(t)
	src := func(fname string) string { return filepath.Join(dir, "src", fname) }

	c, stdout, stderr := newRun(t, "-p", out)
	code, err := c.run(ctx)
	if err != nil || code != 0 {
		t.Fatalf("run(ctx)=%d, %v; want 0, nil", code, err)
	}
	var got []compdb.Entry
	err = json.Unmarshal(stdout.Bytes(), &got)
	if err != nil {
		t.Fatalf("unmarshal %q: %v", stdout.String(), err)
	}
	want := []compdb.Entry{
		{
			Directory: out,
			File:      src("base/a.cc"),
			Arguments: []string{"clang++", "-I..", "-c", "../base/a.cc"},
		},
		{
			Directory: out,
			File:      src("base/a.h"),
			Arguments: []string{"clang++", "-I..", "-c", "../base/a.cc"},
		},
		{
			Directory: out,
			File:      src("base/b.cc"),
			Command:   "clang++ -I.. -c ../base/b.cc",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run(ctx) output diff -want +got:\n%s", diff)
	}
	if !strings.Contains(stderr.String(), "Generated 3 compile commands in ") {
		t.Errorf("stderr=%q; want summary line", stderr.String())
	}
}

func TestRun_Strict(t *testing.T) {
	ctx := context.Background()
	_, out := setupBuild(t)

	c, _, _ := newRun(t, "-p", out, "-strict", "-no_header_entries")
	code, err := c.run(ctx)
	if err != nil || code != exitPartial {
		t.Errorf("run(ctx)=%d, %v; want %d, nil", code, err, exitPartial)
	}
}

func TestRun_OutputFile(t *testing.T) {
	ctx := context.Background()
	_, out := setupBuild(t)
	output := filepath.Join(t.TempDir(), compdb.Filename)

	c, stdout, _ := newRun(t, "-p", out, "-o", output, "-no_header_entries")
	code, err := c.run(ctx)
	if err != nil || code != 0 {
		t.Fatalf("run(ctx)=%d, %v; want 0, nil", code, err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout=%q; want empty", stdout.String())
	}
	buf, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var got []compdb.Entry
	err = json.Unmarshal(buf, &got)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("entries=%d; want 2", len(got))
	}
}

func TestRun_Config(t *testing.T) {
	ctx := context.Background()
	_, out := setupBuild(t)
	config := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(config, []byte(`{"system_roots": ["relative/path"]}`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	c, _, _ := newRun(t, "-p", out, "-config", config)
	code, err := c.run(ctx)
	if err == nil || code != 1 {
		t.Errorf("run(ctx)=%d, %v; want 1, err", code, err)
	}
}

func TestRun_NoDatabase(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newRun(t, "-p", t.TempDir())
	code, err := c.run(ctx)
	if err == nil || code != 1 {
		t.Errorf("run(ctx)=%d, %v; want 1, err", code, err)
	}
}

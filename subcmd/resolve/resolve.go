// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package resolve is resolve subcommand for debugging header resolution.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/compdb/build"
	"go.chromium.org/infra/build/compdb/compdb"
	"go.chromium.org/infra/build/compdb/scandeps"
)

const usage = `resolve headers of source files

 $ compdb resolve [-p <build-path>] [-check] <source>...

It finds the records of <source> in compile_commands.json in
<build-path>, and prints the search path and the resolved headers
of each record in JSON.

With -check, it also runs the compiler (or reads the depfile if it
exists) and prints the difference of project headers.
Exit status is 2 if there is a difference.
`

// exitDiff is exit status when -check finds a difference.
const exitDiff = 2

// Cmd returns the Command for the `resolve` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "resolve [-p <build-path>] [-check] <source>...",
		ShortDesc: "resolve headers of source files",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir        string
	configFile string
	check      bool
	opts       build.Options

	stdout io.Writer
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "p", ".", "build path that has compile_commands.json")
	c.Flags.StringVar(&c.configFile, "config", "", "JSON config file of options. flags override it")
	c.Flags.BoolVar(&c.check, "check", false, "compare resolved headers with the compiler's")
	c.opts.RegisterFlags(&c.Flags)
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	c.stdout = os.Stdout
	code, err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return code
}

// resolution is a resolution of one record.
type resolution struct {
	File       string              `json:"file"`
	Directory  string              `json:"directory"`
	SearchPath scandeps.SearchPath `json:"search_path"`
	Result     *scandeps.Result    `json:"result,omitempty"`
	Diff       *build.DepsDiff     `json:"diff,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (c *run) run(ctx context.Context, args []string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	if len(args) == 0 {
		return 1, fmt.Errorf("no source: %w", flag.ErrHelp)
	}
	opts := c.opts
	if c.configFile != "" {
		cfg, err := build.LoadOptions(c.configFile)
		if err != nil {
			return 1, err
		}
		opts = cfg.Merge(opts)
	}
	records, _, err := compdb.LoadDirs(ctx, []string{c.dir})
	if err != nil {
		return 1, err
	}
	matched, err := match(records, args)
	if err != nil {
		return 1, err
	}
	b, err := build.New(opts)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warnf("failed to close builder: %v", err)
		}
	}()

	code := 0
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	for _, rec := range matched {
		r := c.resolve(ctx, b, rec)
		if r.Diff != nil && !r.Diff.Empty() {
			code = exitDiff
		}
		err := enc.Encode(r)
		if err != nil {
			return 1, err
		}
	}
	return code, nil
}

func (c *run) resolve(ctx context.Context, b *build.Builder, rec compdb.BuildRecord) resolution {
	r := resolution{
		File:      rec.File,
		Directory: rec.Directory,
	}
	var err error
	r.SearchPath, err = b.SearchPath(ctx, rec)
	if err != nil {
		log.Warnf("%s: %v", rec.File, err)
	}
	if !c.check {
		r.Result, _, err = b.Resolve(ctx, rec)
		if err != nil {
			r.Error = err.Error()
		}
		return r
	}
	res, diff, err := b.Check(ctx, rec)
	r.Result = res
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Diff = &diff
	return r
}

// match returns records of sources, in the order of sources.
// A source may have several records.
func match(records []compdb.BuildRecord, sources []string) ([]compdb.BuildRecord, error) {
	var matched []compdb.BuildRecord
	for _, src := range sources {
		fname, err := filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		found := false
		for _, rec := range records {
			if rec.File == fname {
				matched = append(matched, rec)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no record for %s", src)
		}
	}
	return matched, nil
}

// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package list is list subcommand to generate compilation database.
package list

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/cpuid/v2"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/compdb/build"
	"go.chromium.org/infra/build/compdb/compdb"
	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/sync/semaphore"
	"go.chromium.org/infra/build/compdb/ui"
)

const usage = `generate compilation database with header entries

 $ compdb list [-p <build-path>]... > compile_commands.json

It reads compile_commands.json in each build path (default: .),
resolves headers included by each source file, and prints
compilation database including entries for project headers.

Headers under -system_root are recorded but not expanded.

Exit status is 1 on fatal error, and 2 if -strict is given and
some records have unresolved includes or failed.
`

// exitPartial is exit status when -strict and some records failed.
const exitPartial = 2

// Cmd returns the Command for the `list` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "list [-p <build-path>]...",
		ShortDesc: "generate compilation database with header entries",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type buildPaths []string

func (p *buildPaths) String() string {
	return strings.Join(*p, ",")
}

func (p *buildPaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

type run struct {
	subcommands.CommandRunBase

	buildPaths buildPaths
	configFile string
	output     string
	noHeaders  bool
	strict     bool
	debug      bool
	opts       build.Options

	stdout, stderr io.Writer
}

func (c *run) init() {
	c.Flags.Var(&c.buildPaths, "p", "build path that has compile_commands.json. can be repeated (default: .)")
	c.Flags.StringVar(&c.configFile, "config", "", "JSON config file of options. flags override it")
	c.Flags.StringVar(&c.output, "o", "", "output file. default is stdout")
	c.Flags.BoolVar(&c.noHeaders, "no_header_entries", false, "don't add entries for project headers")
	c.Flags.BoolVar(&c.strict, "strict", false, "exit with 2 if some records have unresolved includes or failed")
	c.Flags.BoolVar(&c.debug, "debug", false, "print run statistics")
	c.opts.RegisterFlags(&c.Flags)
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	c.stdout = os.Stdout
	c.stderr = os.Stderr
	code, err := c.run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		case errors.Is(err, context.Canceled):
			fmt.Fprintf(os.Stderr, "interrupted\n")
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return code
}

func (c *run) options() (build.Options, error) {
	opts := c.opts
	opts.HeaderEntries = !c.noHeaders
	if c.configFile == "" {
		return opts, nil
	}
	cfg, err := build.LoadOptions(c.configFile)
	if err != nil {
		return opts, err
	}
	return cfg.Merge(opts), nil
}

func (c *run) run(ctx context.Context) (int, error) {
	started := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()
	if c.debug {
		log.SetLevel(log.DebugLevel)
	}

	clog.Infof(ctx, "%s", cpuinfo())
	opts, err := c.options()
	if err != nil {
		return 1, err
	}
	paths := []string(c.buildPaths)
	if len(paths) == 0 {
		paths = []string{"."}
	}
	spin := ui.Default.NewSpinner()
	spin.Start("loading %s", compdb.Filename)
	records, skipped, err := compdb.LoadDirs(ctx, paths)
	if err != nil {
		spin.Stop(err)
		return 1, err
	}
	spin.Done("%d records", len(records))
	b, err := build.New(opts)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warnf("failed to close builder: %v", err)
		}
	}()
	report, err := b.Run(ctx, records, skipped...)
	if err != nil {
		return 1, err
	}
	if n := b.GarbageCollect(ctx); n > 0 {
		clog.Infof(ctx, "garbage collected %d cache entries", n)
	}
	err = c.write(report.Database)
	if err != nil {
		return 1, err
	}
	c.summary(report)
	fmt.Fprintf(c.stderr, "Generated %d compile commands in %.3fs\n", report.Database.Len(), time.Since(started).Seconds())
	if c.strict && report.HasFailures() {
		return exitPartial, nil
	}
	return 0, nil
}

func (c *run) write(db *compdb.Database) error {
	if c.output == "" {
		return db.WriteJSON(c.stdout)
	}
	f, err := os.Create(c.output)
	if err != nil {
		return err
	}
	err = db.WriteJSON(f)
	cerr := f.Close()
	if err != nil {
		return err
	}
	return cerr
}

// maxFailures is the number of failures shown to the user.
const maxFailures = 10

func (c *run) summary(report *build.Report) {
	for i, f := range report.Failures {
		if i == maxFailures {
			ui.Default.Warningf("... and %d more failures", len(report.Failures)-maxFailures)
			break
		}
		if f.Dropped() {
			ui.Default.Errorf("%s", f)
			continue
		}
		ui.Default.Warningf("%s", f)
	}
	st := report.Stats
	if st.Partial > 0 || st.Failed > 0 || st.Skipped > 0 {
		ui.Default.Warningf("records=%d partial=%d failed=%d skipped=%d", st.Records, st.Partial, st.Failed, st.Skipped)
	}
	log.Debugf("file io: %s", st.FileIO)
	log.Debugf("cache io: %s", st.CacheIO)
	for _, name := range semaphore.Names() {
		if sema, err := semaphore.Lookup(name); err == nil {
			log.Debugf("semaphore %s", sema)
		}
	}
	log.Debugf("cache computes=%d hits=%d store_hits=%d steals=%d %s", st.Cache.Computes, st.Cache.Hits, st.Cache.StoreHits, st.Scheduler.Steals(), ui.FormatDuration(st.Duration))
}

func cpuinfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cpu family=%d model=%d stepping=%d ", cpuid.CPU.Family, cpuid.CPU.Model, cpuid.CPU.Stepping)
	fmt.Fprintf(&sb, "brand=%q vendor=%q ", cpuid.CPU.BrandName, cpuid.CPU.VendorString)
	fmt.Fprintf(&sb, "physicalCores=%d threadsPerCore=%d logicalCores=%d ", cpuid.CPU.PhysicalCores, cpuid.CPU.ThreadsPerCore, cpuid.CPU.LogicalCores)
	fmt.Fprintf(&sb, "vm=%t features=%s", cpuid.CPU.VM(), cpuid.CPU.FeatureSet())
	return sb.String()
}

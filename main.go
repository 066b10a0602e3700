// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// compdb generates compilation database with entries for headers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	log "github.com/golang/glog"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/subcmd/list"
	"go.chromium.org/infra/build/compdb/subcmd/resolve"
	"go.chromium.org/infra/build/compdb/subcmd/version"
	"go.chromium.org/infra/build/compdb/ui"
)

const compdbVersion = "v1.0.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "compdb",
		Title: "Compilation database generator with header entries",
		Context: func(ctx context.Context) context.Context {
			return clog.NewContext(ctx, clog.New(ctx))
		},
		Commands: []*subcommands.Command{
			list.Cmd(),
			resolve.Cmd(),

			subcommands.CmdHelp,
			version.Cmd(fmt.Sprintf("compdb %s", compdbVersion)),
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{},
	}
}

func main() {
	os.Exit(compdbMain(os.Args[1:]))
}

func compdbMain(args []string) int {
	ui.Init()
	defer ui.Restore()

	// glog flags, e.g. -v, -log_dir.
	flag.CommandLine.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "global flags:\n")
		flag.PrintDefaults()
	}
	err := flag.CommandLine.Parse(args)
	if err != nil {
		return 2
	}

	// Flush the log on exit to not lose any messages.
	defer log.Flush()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	// Print build information to the log.
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Infof("buildinfo: path=%q", buildinfo.Path)
		log.Infof("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
		if log.V(1) {
			for _, m := range buildinfo.Deps {
				log.Infof("deps module: %s", moduleInfo(m))
			}
			for _, bs := range buildinfo.Settings {
				log.Infof("build %s=%s", bs.Key, bs.Value)
			}
		}
	}
	return subcommands.Run(getApplication(), flag.CommandLine.Args())
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}

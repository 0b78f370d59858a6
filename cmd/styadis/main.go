// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command styadis performs Yadis discovery on identifier URLs, either once
// from the command line or as an HTTP service.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/calmh/incontainer"
	"github.com/willabides/kongplete"

	"github.com/syncthing/yadis/internal/slogutil"
	_ "github.com/syncthing/yadis/lib/automaxprocs"
	"github.com/syncthing/yadis/lib/build"
	"github.com/syncthing/yadis/lib/svcutil"
	"github.com/syncthing/yadis/lib/yadis"
)

type CLI struct {
	Config    kong.ConfigFlag `help:"YAML configuration file" env:"STYADIS_CONFIG" placeholder:"PATH"`
	LogLevel  slog.Level      `help:"Default log level (DEBUG, INFO, WARN, ERROR)" default:"INFO" env:"STYADIS_LOG_LEVEL"`
	LogSyslog bool            `help:"Prefix log lines with syslog severities instead of timestamps, for journald" env:"STYADIS_LOG_SYSLOG"`

	Discover           discoverCmd                  `cmd:"" help:"Discover the services of an identifier"`
	Serve              serveCmd                     `cmd:"" help:"Run the discovery HTTP service"`
	Version            versionCmd                   `cmd:"" help:"Show version"`
	LogPackages        logPackagesCmd               `cmd:"" help:"List packages and their log levels, as set by STTRACE"`
	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

// limitFlags are the discovery settings shared by all commands that
// resolve identifiers.
type limitFlags struct {
	MaxRedirects       int           `help:"Maximum number of redirects to follow per request" default:"10" env:"STYADIS_MAX_REDIRECTS"`
	MaxBodySize        int64         `help:"Maximum response body size, in bytes" default:"102400" env:"STYADIS_MAX_BODY_SIZE"`
	Timeout            time.Duration `help:"Timeout per HTTP request" default:"30s" env:"STYADIS_TIMEOUT"`
	HTMLRepair         bool          `help:"Repair HTML pages with a missing or duplicated head instead of rejecting them" env:"STYADIS_HTML_REPAIR"`
	AllowTruncatedHTML bool          `help:"Scan HTML pages cut off at the body size limit" env:"STYADIS_ALLOW_TRUNCATED_HTML"`
}

func (f limitFlags) options() yadis.Options {
	opts := yadis.Options{
		Limits: yadis.Limits{
			MaxRedirects: f.MaxRedirects,
			MaxBodySize:  f.MaxBodySize,
			Timeout:      f.Timeout,
		},
		AllowTruncatedHTML: f.AllowTruncatedHTML,
	}
	if f.HTMLRepair {
		opts.HTMLMode = yadis.HTMLRepair
	}
	return opts
}

func (f limitFlags) Validate() error {
	return yadis.Limits{
		MaxRedirects: f.MaxRedirects,
		MaxBodySize:  f.MaxBodySize,
		Timeout:      f.Timeout,
	}.Validate()
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Println(build.LongVersion)
	return nil
}

type logPackagesCmd struct{}

func (logPackagesCmd) Run() error {
	return writeLogPackages(os.Stdout)
}

func writeLogPackages(out io.Writer) error {
	descrs := slogutil.PackageDescrs()
	levels := slogutil.PackageLevels()
	pkgs := make([]string, 0, len(descrs))
	for pkg := range descrs {
		pkgs = append(pkgs, pkg)
	}
	slices.Sort(pkgs)

	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tLEVEL\tDESCRIPTION")
	for _, pkg := range pkgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", pkg, levels[pkg], descrs[pkg])
	}
	return tw.Flush()
}

func defaultListenAddress() string {
	if incontainer.Detect() {
		return ":8080"
	}
	return "127.0.0.1:8080"
}

func main() {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name(build.Program),
		kong.Description("Yadis service discovery"),
		kong.UsageOnError(),
		kong.Configuration(yamlConfig),
		kong.Vars{
			"defaultListen": defaultListenAddress(),
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(svcutil.ExitError.AsInt())
	}
	kongplete.Complete(parser)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	slogutil.SetDefaultLevel(cli.LogLevel)
	if cli.LogSyslog {
		slogutil.SetLineFormat(slogutil.LineFormat{LevelSyslog: true, LevelString: true})
	}

	if err := ctx.Run(cli.LogLevel); err != nil {
		var ferr *svcutil.FatalErr
		if errors.As(err, &ferr) {
			slog.Error("Exiting", slogutil.Error(ferr.Err))
			os.Exit(ferr.Status.AsInt())
		}
		slog.Error("Exiting", slogutil.Error(err))
		os.Exit(svcutil.ExitError.AsInt())
	}
}

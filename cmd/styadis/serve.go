// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/syncthing/yadis/internal/slogutil"
	"github.com/syncthing/yadis/lib/build"
	"github.com/syncthing/yadis/lib/dialer"
	"github.com/syncthing/yadis/lib/fetcher"
	"github.com/syncthing/yadis/lib/svcutil"
	"github.com/syncthing/yadis/lib/yadis"
)

type serveCmd struct {
	limitFlags `embed:""`

	Listen       string   `help:"HTTP listen address" default:"${defaultListen}" env:"STYADIS_LISTEN"`
	LimitAvg     int      `help:"Allowed average request rate per client, per 10 s" default:"10" env:"STYADIS_LIMIT_AVG"`
	LimitBurst   int      `help:"Allowed burst size per client, requests" default:"20" env:"STYADIS_LIMIT_BURST"`
	LimitCache   int      `help:"Number of clients to track for rate limiting" default:"10240" env:"STYADIS_LIMIT_CACHE"`
	BehindProxy  bool     `help:"Trust X-Forwarded-For for the client address" env:"STYADIS_BEHIND_PROXY"`
	DefaultTypes []string `help:"Service types to filter on when a request names none" placeholder:"URI" env:"STYADIS_DEFAULT_TYPES"`
	AllowPrivate bool     `help:"Allow discovery on loopback, link-local and private network addresses" env:"STYADIS_ALLOW_PRIVATE"`
}

func (c *serveCmd) Run(level slog.Level) error {
	slog.Info("Starting discovery service", "version", build.Version, "listen", c.Listen)

	d := dialer.New()
	d.PublicOnly = !c.AllowPrivate
	if d.PublicOnly {
		slog.Info("Refusing discovery on non-public addresses")
	}

	r := yadis.NewResolver(fetcher.New(d), c.options())
	srv, err := newQuerySrv(querySrvOptions{
		addr:         c.Listen,
		resolver:     r,
		limitAvg:     c.LimitAvg,
		limitBurst:   c.LimitBurst,
		limitCache:   c.LimitCache,
		behindProxy:  c.BehindProxy,
		defaultTypes: c.DefaultTypes,
	})
	if err != nil {
		return svcutil.AsFatalErr(err, svcutil.ExitUsage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	main := suture.New("main", supervisorSpec(level))
	svc := svcutil.AsService(srv.serve, srv.String())
	main.Add(svc)
	svcutil.OnSupervisorDone(main, func() {
		slog.Info("Discovery service stopped")
	})

	err = main.Serve(ctx)
	if serr := svc.Error(); serr != nil && !errors.Is(serr, context.Canceled) {
		return serr
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	slog.Error("Supervisor exited", slogutil.Error(err))
	return err
}

// supervisorSpec logs supervisor events at info level, or at debug level
// when debugging.
func supervisorSpec(level slog.Level) suture.Spec {
	if level <= slog.LevelDebug {
		return svcutil.SpecWithDebugLogger()
	}
	return svcutil.SpecWithInfoLogger()
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/syncthing/yadis/lib/fetcher"
	"github.com/syncthing/yadis/lib/openid"
	"github.com/syncthing/yadis/lib/svcutil"
	"github.com/syncthing/yadis/lib/yadis"
)

type discoverCmd struct {
	limitFlags `embed:""`

	Identifier string   `arg:"" help:"Identifier URL to discover"`
	Type       []string `help:"Only show endpoints with one of these service types" placeholder:"URI"`
	OpenID     bool     `name:"openid" help:"Show OpenID provider endpoints instead of raw service endpoints"`
	JSON       bool     `name:"json" help:"Print the result as JSON"`
}

func (c *discoverCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r := yadis.NewResolver(fetcher.New(nil), c.options())
	return c.run(ctx, r, os.Stdout)
}

func (c *discoverCmd) run(ctx context.Context, r *yadis.Resolver, out io.Writer) error {
	if c.OpenID {
		infos, err := openid.Discover(ctx, r, c.Identifier)
		if err != nil {
			return discoveryFailed(err)
		}
		if c.JSON {
			return writeJSON(out, infos)
		}
		tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tENDPOINT\tCLAIMED ID\tLOCAL ID")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Version, info.Endpoint, info.ClaimedID, dash(info.LocalID))
		}
		return tw.Flush()
	}

	res, err := r.Discover(ctx, c.Identifier, yadis.Limits{}, c.Type)
	if err != nil {
		return discoveryFailed(err)
	}
	if c.JSON {
		return writeJSON(out, newDiscoverResponse(c.Identifier, res))
	}

	fmt.Fprintln(out, "Yadis URL:", res.YadisURL)
	if res.XRDSLocation != nil {
		fmt.Fprintln(out, "XRDS location:", res.XRDSLocation)
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tURI\tTYPES\tLOCAL ID\tDELEGATE")
	for _, ep := range res.Endpoints {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ep.Priority(), dash(ep.URI), strings.Join(ep.Types, " "), dash(ep.LocalID), dash(ep.Delegate))
	}
	return tw.Flush()
}

// discoveryFailed marks a discovery error as the reason to exit with
// ExitDiscovery; other errors keep the generic status.
func discoveryFailed(err error) error {
	if yadis.CodeOf(err) == yadis.CodeUnknown {
		return err
	}
	return svcutil.AsFatalErr(err, svcutil.ExitDiscovery)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package openid extracts OpenID provider endpoints from Yadis discovery
// results.
package openid

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/syncthing/yadis/lib/yadis"
)

// Service types, in order of preference.
const (
	TypeServer   = "http://specs.openid.net/auth/2.0/server"
	TypeSignon   = "http://specs.openid.net/auth/2.0/signon"
	TypeSignon11 = "http://openid.net/signon/1.1"
	TypeSignon10 = "http://openid.net/signon/1.0"

	// IdentifierSelect is the claimed identifier used with OP identifiers.
	IdentifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"
)

// Types are the service types understood by Extract.
var Types = []string{TypeServer, TypeSignon, TypeSignon11, TypeSignon10}

// Info describes one OpenID provider endpoint.
type Info struct {
	Endpoint  *url.URL `json:"endpoint"`
	ClaimedID string   `json:"claimedID"`
	LocalID   string   `json:"localID,omitempty"`
	Version   string   `json:"version"`
	OPServer  bool     `json:"opServer,omitempty"`
}

// Discover runs discovery on identifier restricted to the OpenID types
// and extracts the provider endpoints.
func Discover(ctx context.Context, r *yadis.Resolver, identifier string) ([]Info, error) {
	res, err := r.Discover(ctx, identifier, yadis.Limits{}, Types)
	if err != nil {
		return nil, err
	}
	return Extract(res)
}

// Extract returns the OpenID endpoints of res. Endpoints advertising an
// OP identifier come first, then 2.0 signon, then 1.x signon; within each
// group discovery order is kept. Endpoints with an empty URI are skipped.
// A URI that is not an absolute http or https URL fails with
// yadis.ErrInvalidURL.
func Extract(res *yadis.Result) ([]Info, error) {
	var groups [4][]Info
	for _, ep := range res.Endpoints {
		rank, version := classify(ep.Types)
		if rank < 0 {
			continue
		}
		if ep.URI == "" {
			slog.Debug("Skipping OpenID endpoint without URI", "types", ep.Types)
			continue
		}
		u, err := yadis.ParseIdentifier(ep.URI)
		if err != nil {
			return nil, err
		}

		info := Info{
			Endpoint: u,
			Version:  version,
		}
		switch rank {
		case 0:
			info.ClaimedID = IdentifierSelect
			info.OPServer = true
		case 1:
			info.ClaimedID = claimedID(res)
			info.LocalID = ep.LocalID
		default:
			info.ClaimedID = claimedID(res)
			info.LocalID = ep.Delegate
		}
		groups[rank] = append(groups[rank], info)
	}

	var infos []Info
	for _, g := range groups {
		infos = append(infos, g...)
	}
	return infos, nil
}

// classify returns the preference rank and protocol version of the most
// preferred OpenID type in types, or -1.
func classify(types []string) (int, string) {
	rank := -1
	for _, t := range types {
		var r int
		switch t {
		case TypeServer:
			r = 0
		case TypeSignon:
			r = 1
		case TypeSignon11:
			r = 2
		case TypeSignon10:
			r = 3
		default:
			continue
		}
		if rank < 0 || r < rank {
			rank = r
		}
	}
	switch rank {
	case 0, 1:
		return rank, "2.0"
	case 2:
		return rank, "1.1"
	case 3:
		return rank, "1.0"
	default:
		return -1, ""
	}
}

func claimedID(res *yadis.Result) string {
	if res.YadisURL == nil {
		return ""
	}
	u := *res.YadisURL
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

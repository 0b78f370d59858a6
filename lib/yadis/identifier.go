// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	errEmptyURL  = errors.New("empty URL")
	errNotHTTP   = errors.New("scheme is not http or https")
	errEmptyHost = errors.New("empty host")
)

// ParseIdentifier validates an identifier as an absolute http or https URL
// with a host name that survives IDNA lookup conversion. Internationalized
// host names are returned in their ASCII form; IP literals are accepted as
// is. Failures are *Error values with CodeInvalidURL.
func ParseIdentifier(identifier string) (*url.URL, error) {
	u, err := parseHTTPURL(identifier)
	if err != nil {
		return nil, newError(CodeInvalidURL, err, "identifier %q", identifier)
	}
	return u, nil
}

func parseHTTPURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errEmptyURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errNotHTTP
	}
	host := u.Hostname()
	if host == "" {
		return nil, errEmptyHost
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return u, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, fmt.Errorf("host %q: %w", host, err)
	}
	if ascii != host {
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(ascii, port)
		} else {
			u.Host = ascii
		}
	}
	return u, nil
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package dialer

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"golang.org/x/net/proxy"
)

type fakeDialer struct {
	conn net.Conn
	err  error
}

func (d fakeDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d fakeDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	return d.conn, d.err
}

func TestDialDirect(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	conn, err := dialContextWithFallback(context.Background(), proxy.Direct, fakeDialer{conn: c1}, false, "tcp", "example.com:80")
	if err != nil {
		t.Fatal(err)
	}
	if conn != c1 {
		t.Error("expected the direct connection")
	}
}

func TestDialProxyPreferred(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()
	defer p2.Close()
	d1, d2 := net.Pipe()
	defer d2.Close()

	conn, err := dialContextWithFallback(context.Background(), fakeDialer{conn: p1}, fakeDialer{conn: d1}, false, "tcp", "192.0.2.1:80")
	if err != nil {
		t.Fatal(err)
	}
	dc, ok := conn.(dialerConn)
	if !ok {
		t.Fatalf("expected a proxied connection, got %T", conn)
	}
	if dc.Conn != p1 {
		t.Error("expected the proxy connection")
	}
}

func TestDialProxyFallback(t *testing.T) {
	d1, d2 := net.Pipe()
	defer d1.Close()
	defer d2.Close()
	proxyErr := errors.New("proxy down")

	conn, err := dialContextWithFallback(context.Background(), fakeDialer{err: proxyErr}, fakeDialer{conn: d1}, false, "tcp", "192.0.2.1:80")
	if err != nil {
		t.Fatal(err)
	}
	if conn != d1 {
		t.Error("expected the fallback connection")
	}

	_, err = dialContextWithFallback(context.Background(), fakeDialer{err: proxyErr}, fakeDialer{conn: d1}, true, "tcp", "192.0.2.1:80")
	if !errors.Is(err, proxyErr) {
		t.Errorf("expected proxy error without fallback, got %v", err)
	}
}

func TestIsPublic(t *testing.T) {
	cases := []struct {
		addr   string
		public bool
	}{
		{"192.0.2.1", true},
		{"2001:db8::1", true},
		{"::ffff:192.0.2.1", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"::", false},
		{"224.0.0.1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tc := range cases {
		if public := IsPublic(netip.MustParseAddr(tc.addr)); public != tc.public {
			t.Errorf("%s: got %v, expected %v", tc.addr, public, tc.public)
		}
	}
}

func TestPublicOnlyControl(t *testing.T) {
	if err := publicOnlyControl("tcp", "192.0.2.1:80", nil); err != nil {
		t.Error(err)
	}
	if err := publicOnlyControl("tcp", "[fe80::1%eth0]:80", nil); !errors.Is(err, ErrPrivateAddress) {
		t.Errorf("expected refusal, got %v", err)
	}
	if err := publicOnlyControl("tcp", "127.0.0.1:80", nil); !errors.Is(err, ErrPrivateAddress) {
		t.Errorf("expected refusal, got %v", err)
	}
}

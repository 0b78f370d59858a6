// Copyright (C) 2015 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dialer provides outgoing connections that honour the ALL_PROXY
// environment variable, with optional fallback to direct dialing.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"os"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

var (
	errUnexpectedInterfaceType = errors.New("unexpected interface type")

	// ErrPrivateAddress is returned when PublicOnly refuses a connection.
	ErrPrivateAddress = errors.New("refusing to connect to non-public address")
)

func init() {
	proxy.RegisterDialerType("socks", socksDialerFunction)
}

// A Dialer dials through the proxy configured in the environment, if
// any. Unless NoFallback is set, a direct connection is attempted
// concurrently and used when the proxy connection fails.
type Dialer struct {
	// Direct is used for direct connections; a net.Dialer with Timeout
	// and KeepAlive set when nil.
	Direct     proxy.ContextDialer
	NoFallback bool
	// PublicOnly refuses direct connections to loopback, link-local,
	// private and other non global unicast addresses. The check applies
	// to the resolved address, so it holds across redirects and DNS
	// answers. Connections through a proxy are not checked.
	PublicOnly bool
}

// New returns a Dialer configured from the environment. Setting
// ALL_PROXY_NO_FALLBACK disables the direct fallback.
func New() *Dialer {
	d := &Dialer{
		NoFallback: os.Getenv("ALL_PROXY_NO_FALLBACK") != "",
	}
	if Proxied() {
		slog.Info("Proxy settings detected")
		if d.NoFallback {
			slog.Info("Proxy fallback disabled")
		}
	}
	return d
}

// Proxied returns true if ALL_PROXY points at a usable proxy.
func Proxied() bool {
	return proxy.FromEnvironment() != proxy.Direct
}

// DialContext dials via proxy and/or directly, depending on how it is
// configured. If dialing via proxy and allowing fallback, dialing for both
// happens simultaneously and the proxy connection is returned if
// successful.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	fallback := d.Direct
	if fallback == nil {
		nd := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		if d.PublicOnly {
			nd.Control = publicOnlyControl
		}
		fallback = nd
	}
	return dialContextWithFallback(ctx, proxy.FromEnvironment(), fallback, d.NoFallback, network, addr)
}

func dialContextWithFallback(ctx context.Context, envDialer proxy.Dialer, fallback proxy.ContextDialer, noFallback bool, network, addr string) (net.Conn, error) {
	if envDialer == proxy.Direct {
		conn, err := fallback.DialContext(ctx, network, addr)
		slog.DebugContext(ctx, "Dialing direct", "network", network, "addr", addr, "err", err)
		return conn, err
	}
	dialer, ok := envDialer.(proxy.ContextDialer)
	if !ok {
		return nil, errUnexpectedInterfaceType
	}
	if noFallback {
		conn, err := dialer.DialContext(ctx, network, addr)
		slog.DebugContext(ctx, "Dialing without fallback", "network", network, "addr", addr, "err", err)
		if err != nil {
			return nil, err
		}
		return dialerConn{conn, newDialerAddr(network, addr)}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var proxyConn, fallbackConn net.Conn
	var proxyErr, fallbackErr error
	proxyDone := make(chan struct{})
	fallbackDone := make(chan struct{})
	go func() {
		proxyConn, proxyErr = dialer.DialContext(ctx, network, addr)
		slog.DebugContext(ctx, "Dialing proxy", "network", network, "addr", addr, "err", proxyErr)
		if proxyErr == nil {
			proxyConn = dialerConn{proxyConn, newDialerAddr(network, addr)}
		}
		close(proxyDone)
	}()
	go func() {
		fallbackConn, fallbackErr = fallback.DialContext(ctx, network, addr)
		slog.DebugContext(ctx, "Dialing fallback", "network", network, "addr", addr, "err", fallbackErr)
		close(fallbackDone)
	}()
	<-proxyDone
	if proxyErr == nil {
		go func() {
			<-fallbackDone
			if fallbackErr == nil {
				_ = fallbackConn.Close()
			}
		}()
		return proxyConn, nil
	}
	<-fallbackDone
	return fallbackConn, fallbackErr
}

func publicOnlyControl(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return err
	}
	if !IsPublic(ap.Addr()) {
		return fmt.Errorf("%w %v", ErrPrivateAddress, ap.Addr())
	}
	return nil
}

// IsPublic returns true for global unicast addresses outside the private
// ranges.
func IsPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// This is a rip off of proxy.FromURL for "socks" URL scheme
func socksDialerFunction(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	var auth *proxy.Auth
	if u.User != nil {
		auth = new(proxy.Auth)
		auth.User = u.User.Username()
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	return proxy.SOCKS5("tcp", u.Host, auth, forward)
}

// dialerConn is needed because proxy dialed connections have RemoteAddr()
// pointing at the proxy, while logging wants the real peer.
type dialerConn struct {
	net.Conn

	addr net.Addr
}

func (c dialerConn) RemoteAddr() net.Addr {
	return c.addr
}

func newDialerAddr(network, addr string) net.Addr {
	netAddr, err := net.ResolveIPAddr(network, addr)
	if err == nil {
		return netAddr
	}
	return fallbackAddr{network, addr}
}

type fallbackAddr struct {
	network string
	addr    string
}

func (a fallbackAddr) Network() string {
	return a.network
}

func (a fallbackAddr) String() string {
	return a.addr
}

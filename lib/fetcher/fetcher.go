// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fetcher implements the discovery Fetcher on top of net/http.
package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/syncthing/yadis/internal/slogutil"
	"github.com/syncthing/yadis/lib/build"
	"github.com/syncthing/yadis/lib/dialer"
	"github.com/syncthing/yadis/lib/yadis"
)

// Fetcher performs discovery requests over HTTP. It is safe for
// concurrent use; connections are pooled in the shared transport.
type Fetcher struct {
	transport http.RoundTripper
	userAgent string
}

var _ yadis.Fetcher = (*Fetcher)(nil)

// New returns a Fetcher dialing through d, which may be nil for a
// dialer configured from the environment.
func New(d *dialer.Dialer) *Fetcher {
	if d == nil {
		d = dialer.New()
	}
	return NewWithTransport(&http.Transport{
		DialContext:           d.DialContext,
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	})
}

// NewWithTransport returns a Fetcher using the given round tripper.
func NewWithTransport(rt http.RoundTripper) *Fetcher {
	return &Fetcher{
		transport: rt,
		userAgent: build.UserAgent,
	}
}

// Fetch performs the request, following at most req.Limits.MaxRedirects
// redirects. The whole exchange including reading the body is bounded by
// req.Limits.Timeout.
func (f *Fetcher) Fetch(ctx context.Context, req yadis.Request) (*yadis.Response, error) {
	if err := req.Limits.Validate(); err != nil {
		return nil, err
	}
	if req.URL == nil {
		return nil, errors.New("fetch: nil URL")
	}

	ctx, cancel := context.WithTimeout(ctx, req.Limits.Timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	if req.Accept != "" {
		hreq.Header.Set("Accept", req.Accept)
	}
	hreq.Header.Set("User-Agent", f.userAgent)

	maxRedirects := req.Limits.MaxRedirects
	client := &http.Client{
		Transport: f.transport,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				slog.DebugContext(ctx, "Redirect limit reached", slogutil.URI("url", r.URL), "limit", maxRedirects)
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	out := &yadis.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   resp.Request.URL,
	}
	if req.Method != http.MethodHead {
		body, truncated, err := readLimited(resp.Body, req.Limits.MaxBodySize)
		if err != nil {
			return nil, classify(err)
		}
		out.Body = body
		out.Truncated = truncated
	}

	slog.DebugContext(ctx, "Fetched", "method", req.Method, slogutil.URI("url", req.URL), slogutil.URI("final", out.FinalURL), "status", out.StatusCode, "bytes", len(out.Body))
	return out, nil
}

// readLimited reads at most limit bytes and reports whether more were
// available.
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	// One byte past the limit tells a full body from a truncated one.
	n := limit
	if n < math.MaxInt64 {
		n++
	}
	bs, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, false, err
	}
	if int64(len(bs)) > limit {
		return bs[:limit], true, nil
	}
	return bs, false, nil
}

// classify wraps errors that mean the server spoke something other than
// HTTP in yadis.ErrInvalidResponse. Network, timeout, TLS and premature
// close errors are returned as is.
func classify(err error) error {
	inner := err
	var uerr *url.Error
	if errors.As(err, &uerr) {
		// url.Error is itself a net.Error
		inner = uerr.Err
	}

	var (
		nerr    net.Error
		rhErr   tls.RecordHeaderError
		alert   tls.AlertError
		verify  *tls.CertificateVerificationError
		unkAuth x509.UnknownAuthorityError
		host    x509.HostnameError
		invalid x509.CertificateInvalidError
	)
	switch {
	case errors.Is(inner, context.Canceled),
		errors.Is(inner, context.DeadlineExceeded),
		errors.Is(inner, io.EOF),
		errors.Is(inner, io.ErrUnexpectedEOF),
		errors.As(inner, &nerr),
		errors.As(inner, &rhErr),
		errors.As(inner, &alert),
		errors.As(inner, &verify),
		errors.As(inner, &unkAuth),
		errors.As(inner, &host),
		errors.As(inner, &invalid):
		return err
	default:
		return fmt.Errorf("%w: %w", yadis.ErrInvalidResponse, err)
	}
}

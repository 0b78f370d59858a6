// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/syncthing/yadis/internal/slogutil"
)

const (
	ContentTypeXRDS  = "application/xrds+xml"
	ContentTypeHTML  = "text/html"
	ContentTypeXHTML = "application/xhtml+xml"
)

// Options configure a Resolver.
type Options struct {
	// Limits apply when Discover is called with zero Limits. Zero here
	// means DefaultLimits.
	Limits Limits
	// HTMLMode selects how HTML pages are parsed.
	HTMLMode HTMLMode
	// AllowTruncatedHTML scans an HTML page even when it was cut off at
	// Limits.MaxBodySize, instead of failing with XRDS_SIZE_EXCEEDED.
	AllowTruncatedHTML bool
	// AcceptedTypes is the service type filter used by Lookup.
	AcceptedTypes []string
}

// A Resolver performs Yadis discovery. It holds no state between calls
// and is safe for concurrent use when its Fetcher is.
type Resolver struct {
	fetcher Fetcher
	opts    Options
}

func NewResolver(fetcher Fetcher, opts Options) *Resolver {
	if opts.Limits.IsZero() {
		opts.Limits = DefaultLimits()
	}
	opts.AcceptedTypes = slices.Clone(opts.AcceptedTypes)
	return &Resolver{
		fetcher: fetcher,
		opts:    opts,
	}
}

// Limits returns the limits used when Discover is given zero Limits.
func (r *Resolver) Limits() Limits {
	return r.opts.Limits
}

// Discover runs Yadis discovery on identifier. Zero limits select the
// resolver's defaults. When acceptedTypes is non-empty only endpoints
// with at least one of those service types are returned.
func (r *Resolver) Discover(ctx context.Context, identifier string, limits Limits, acceptedTypes []string) (*Result, error) {
	if limits.IsZero() {
		limits = r.opts.Limits
	}
	if err := limits.Validate(); err != nil {
		metricDiscoveries.WithLabelValues("invalid_limits").Inc()
		return nil, err
	}

	u, err := ParseIdentifier(identifier)
	if err != nil {
		metricDiscoveries.WithLabelValues(CodeOf(err).String()).Inc()
		return nil, err
	}

	d := &discovery{
		resolver:      r,
		limits:        limits,
		acceptedTypes: acceptedTypes,
		yadisURL:      u,
	}
	res, err := d.run(ctx)
	if err != nil {
		metricDiscoveries.WithLabelValues(CodeOf(err).String()).Inc()
		slog.DebugContext(ctx, "Yadis discovery failed", slogutil.URI("identifier", u), slogutil.Error(err))
		return nil, err
	}
	metricDiscoveries.WithLabelValues(resultSuccess).Inc()
	metricDiscoveredEndpoints.Observe(float64(len(res.Endpoints)))
	slog.DebugContext(ctx, "Yadis discovery done", slogutil.URI("identifier", u), slogutil.URI("xrds", res.XRDSLocation), "endpoints", slogutil.Expensive(func() any { return res.Records() }))
	return res, nil
}

// Lookup discovers identifier with the resolver's limits and accepted
// types and returns the endpoints as records.
func (r *Resolver) Lookup(ctx context.Context, identifier string) ([]Record, error) {
	res, err := r.Discover(ctx, identifier, r.opts.Limits, r.opts.AcceptedTypes)
	if err != nil {
		return nil, err
	}
	return res.Records(), nil
}

type state int

const (
	stateStart state = iota
	stateHeadDone
	stateLocationFound
	stateGetDone
	stateParsed
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "START"
	case stateHeadDone:
		return "HEAD_DONE"
	case stateLocationFound:
		return "LOCATION_FOUND"
	case stateGetDone:
		return "GET_DONE"
	case stateParsed:
		return "PARSED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// discovery is the per call state of the protocol.
type discovery struct {
	resolver      *Resolver
	limits        Limits
	acceptedTypes []string

	yadisURL     *url.URL
	location     string // candidate XRDS location, not yet validated
	xrdsLocation *url.URL
	contentType  string // full Content-Type header of the last response
	body         []byte
	endpoints    []Endpoint
}

func (d *discovery) run(ctx context.Context) (*Result, error) {
	st := stateStart
	for st != stateParsed {
		var next state
		var err error
		switch st {
		case stateStart:
			next, err = d.head(ctx)
		case stateHeadDone:
			next, err = d.getIdentifier(ctx)
		case stateLocationFound:
			next, err = d.getLocation(ctx)
		case stateGetDone:
			next, err = d.parse()
		default:
			panic("bug: unknown discovery state " + st.String())
		}
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Yadis state transition", "from", st, "to", next)
		st = next
	}

	return &Result{
		YadisURL:     d.yadisURL,
		XRDSLocation: d.xrdsLocation,
		ContentType:  mediaType(d.contentType),
		XRDS:         string(d.body),
		Endpoints:    filterEndpoints(d.endpoints, d.acceptedTypes),
	}, nil
}

// head issues the HEAD request on the identifier.
func (d *discovery) head(ctx context.Context) (state, error) {
	resp, err := d.fetch(ctx, http.MethodHead, d.yadisURL)
	if err != nil {
		if errors.Is(err, ErrInvalidResponse) {
			return 0, newError(CodeHeadInvalidResponse, err, "HEAD %s", d.yadisURL.Redacted())
		}
		return 0, newError(CodeHeadTransportError, err, "HEAD %s", d.yadisURL.Redacted())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0, newError(CodeHeadInvalidResponse, nil, "HEAD %s: status %d", d.yadisURL.Redacted(), resp.StatusCode)
	}
	d.adoptFinalURL(resp)
	d.contentType = resp.Header.Get("Content-Type")

	loc, found, err := selectUnique(resp.Header.Values(xrdsLocationHeader), CodeHeadInvalidResponse, xrdsLocationHeader+" headers")
	if err != nil {
		return 0, err
	}
	if found {
		d.location = loc
		return stateLocationFound, nil
	}
	if mediaType(d.contentType) == ContentTypeXRDS {
		d.location = d.yadisURL.String()
		return stateLocationFound, nil
	}
	return stateHeadDone, nil
}

// getIdentifier issues the GET request on the identifier and looks for a
// location signal in its headers, the document itself or an HTML head.
func (d *discovery) getIdentifier(ctx context.Context) (state, error) {
	resp, err := d.get(ctx, d.yadisURL)
	if err != nil {
		return 0, err
	}
	d.adoptFinalURL(resp)
	d.contentType = resp.Header.Get("Content-Type")
	ct := mediaType(d.contentType)
	isHTML := ct == ContentTypeHTML || ct == ContentTypeXHTML

	if resp.Truncated && !(isHTML && d.resolver.opts.AllowTruncatedHTML) {
		return 0, d.sizeExceeded(d.yadisURL)
	}

	loc, found, err := selectUnique(resp.Header.Values(xrdsLocationHeader), CodeGetInvalidResponse, xrdsLocationHeader+" headers")
	if err != nil {
		return 0, err
	}
	if found {
		d.location = loc
		return stateLocationFound, nil
	}

	switch {
	case ct == ContentTypeXRDS:
		d.xrdsLocation = d.yadisURL
		d.body = resp.Body
		return stateGetDone, nil

	case isHTML:
		doc, err := parseHTML(resp.Body, d.resolver.opts.HTMLMode)
		if err != nil {
			return 0, newError(CodeHTMLMetaInvalidResponse, err, "parse HTML from %s", d.yadisURL.Redacted())
		}
		loc, found, err := scanHTMLMeta(doc)
		if err != nil {
			return 0, err
		}
		if !found {
			return stateParsed, nil
		}
		d.location = loc
		return stateLocationFound, nil

	default:
		return stateParsed, nil
	}
}

// getLocation fetches the XRDS document from the discovered location.
func (d *discovery) getLocation(ctx context.Context) (state, error) {
	u, err := parseHTTPURL(d.location)
	if err != nil {
		return 0, newError(CodeInvalidURL, err, "XRDS location %q", d.location)
	}
	resp, err := d.get(ctx, u)
	if err != nil {
		return 0, err
	}
	if resp.Truncated {
		return 0, d.sizeExceeded(u)
	}
	if u.String() == d.yadisURL.String() {
		d.adoptFinalURL(resp)
	}
	d.xrdsLocation = u
	if resp.FinalURL != nil {
		d.xrdsLocation = resp.FinalURL
	}
	d.contentType = resp.Header.Get("Content-Type")
	d.body = resp.Body
	return stateGetDone, nil
}

func (d *discovery) parse() (state, error) {
	eps, err := parseXRDS(d.body, d.contentType)
	if err != nil {
		return 0, err
	}
	d.endpoints = eps
	return stateParsed, nil
}

// get issues a GET and classifies failures with the GET codes.
func (d *discovery) get(ctx context.Context, u *url.URL) (*Response, error) {
	resp, err := d.fetch(ctx, http.MethodGet, u)
	if err != nil {
		if errors.Is(err, ErrInvalidResponse) {
			return nil, newError(CodeGetError, err, "GET %s", u.Redacted())
		}
		return nil, newError(CodeGetTransportError, err, "GET %s", u.Redacted())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(CodeGetError, nil, "GET %s: status %d", u.Redacted(), resp.StatusCode)
	}
	return resp, nil
}

func (d *discovery) fetch(ctx context.Context, method string, u *url.URL) (*Response, error) {
	t0 := time.Now()
	resp, err := d.resolver.fetcher.Fetch(ctx, Request{
		Method: method,
		URL:    u,
		Accept: ContentTypeXRDS,
		Limits: d.limits,
	})
	metricFetchSeconds.WithLabelValues(method).Observe(time.Since(t0).Seconds())

	switch {
	case errors.Is(err, ErrInvalidResponse):
		metricFetches.WithLabelValues(method, fetchInvalid).Inc()
	case err != nil:
		metricFetches.WithLabelValues(method, fetchTransport).Inc()
	case resp == nil:
		metricFetches.WithLabelValues(method, fetchInvalid).Inc()
		return nil, fmt.Errorf("%w: no response", ErrInvalidResponse)
	default:
		metricFetches.WithLabelValues(method, fetchOK).Inc()
		if resp.Header == nil {
			resp.Header = make(http.Header)
		}
		slog.DebugContext(ctx, "Yadis fetch", "method", method, slogutil.URI("url", u), "status", resp.StatusCode, "bytes", len(resp.Body), "truncated", resp.Truncated)
	}
	return resp, err
}

func (d *discovery) adoptFinalURL(resp *Response) {
	if resp.FinalURL != nil {
		d.yadisURL = resp.FinalURL
	}
}

func (d *discovery) sizeExceeded(u *url.URL) error {
	return newError(CodeXRDSSizeExceeded, nil, "GET %s: body larger than %d bytes", u.Redacted(), d.limits.MaxBodySize)
}

// mediaType returns the lower cased media type without parameters.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		mt = strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}

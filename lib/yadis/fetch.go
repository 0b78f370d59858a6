// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:generate -command counterfeiter go run github.com/maxbrunsfeld/counterfeiter/v6
//go:generate counterfeiter -o mocks/fetcher.go --fake-name Fetcher . Fetcher

package yadis

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrInvalidResponse is wrapped by Fetcher implementations when the server
// answered with something that could not be parsed as HTTP. Any other
// error from Fetch is considered a transport failure.
var ErrInvalidResponse = errors.New("invalid HTTP response")

// A Request is one HTTP exchange as issued by the resolver.
type Request struct {
	Method string // http.MethodHead or http.MethodGet
	URL    *url.URL
	Accept string
	Limits Limits
}

// A Response is the outcome of a Request, after redirects.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body holds at most Limits.MaxBodySize bytes. It is empty for HEAD.
	Body []byte
	// Truncated is set when the server had more than Limits.MaxBodySize
	// bytes to send and reading was stopped.
	Truncated bool
	// FinalURL is the URL of the last request in the redirect chain.
	FinalURL *url.URL
}

// A Fetcher performs HTTP exchanges on behalf of the resolver. It must
// follow at most Limits.MaxRedirects redirects (returning the last redirect
// response when the limit is hit), apply Limits.Timeout to the exchange and
// stop reading the body after Limits.MaxBodySize bytes.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

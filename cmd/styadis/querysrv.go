// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/syncthing/yadis/internal/slogutil"
	"github.com/syncthing/yadis/lib/svcutil"
	"github.com/syncthing/yadis/lib/yadis"
)

const (
	httpReadTimeout    = 5 * time.Second
	httpMaxHeaderBytes = 1 << 10
	retryAfterSeconds  = 10
)

type querySrvOptions struct {
	addr         string
	resolver     *yadis.Resolver
	limitAvg     int // requests per ten seconds
	limitBurst   int
	limitCache   int
	behindProxy  bool
	defaultTypes []string
}

// querySrv answers discovery requests over HTTP.
type querySrv struct {
	querySrvOptions
	limiter  *lru.Cache[string, *rate.Limiter]
	listener net.Listener
}

// discoverResponse is the JSON form of a successful discovery.
type discoverResponse struct {
	Identifier   string           `json:"identifier"`
	YadisURL     string           `json:"yadisURL"`
	XRDSLocation string           `json:"xrdsLocation,omitempty"`
	ContentType  string           `json:"contentType,omitempty"`
	Endpoints    []yadis.Endpoint `json:"endpoints"`
	Records      []yadis.Record   `json:"records"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func newDiscoverResponse(identifier string, res *yadis.Result) discoverResponse {
	resp := discoverResponse{
		Identifier:  identifier,
		YadisURL:    res.YadisURL.String(),
		ContentType: res.ContentType,
		Endpoints:   res.Endpoints,
		Records:     res.Records(),
	}
	if res.XRDSLocation != nil {
		resp.XRDSLocation = res.XRDSLocation.String()
	}
	if resp.Endpoints == nil {
		resp.Endpoints = []yadis.Endpoint{}
	}
	return resp
}

func newQuerySrv(opts querySrvOptions) (*querySrv, error) {
	cache, err := lru.New[string, *rate.Limiter](opts.limitCache)
	if err != nil {
		return nil, fmt.Errorf("limiter cache: %w", err)
	}
	return &querySrv{
		querySrvOptions: opts,
		limiter:         cache,
	}, nil
}

func (s *querySrv) String() string {
	return fmt.Sprintf("querySrv@%s", s.addr)
}

func (s *querySrv) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		slog.Error("Failed to listen", "addr", s.addr, slogutil.Error(err))
		return svcutil.AsFatalErr(err, svcutil.ExitError)
	}
	s.listener = listener
	slog.Info("Listening", "addr", listener.Addr().String())

	srv := &http.Server{
		Handler:        s.router(),
		ReadTimeout:    httpReadTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
		ErrorLog:       log.New(io.Discard, "", 0),
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), svcutil.ServiceTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	err = srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	slog.Error("Serve failed", slogutil.Error(err))
	return err
}

func (s *querySrv) router() http.Handler {
	router := httprouter.New()
	router.GET("/v1/discover", s.handleDiscover)
	router.HandlerFunc(http.MethodGet, "/ping", handlePing)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *querySrv) handleDiscover(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	t0 := time.Now()
	result := "success"
	defer func() {
		apiRequestsSeconds.WithLabelValues("discover").Observe(time.Since(t0).Seconds())
		apiRequestsTotal.WithLabelValues("discover", result).Inc()
	}()

	remoteIP := s.remoteIP(req)
	if s.limit(remoteIP) {
		slog.Debug("Client is rate limited", "remote", remoteIP)
		limitedRequestsTotal.Inc()
		result = "limited"
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	q := req.URL.Query()
	identifier := q.Get("identifier")
	types := q["type"]
	if len(types) == 0 {
		types = s.defaultTypes
	}

	res, err := s.resolver.Discover(req.Context(), identifier, yadis.Limits{}, types)
	if err != nil {
		code := yadis.CodeOf(err)
		result = code.String()
		slog.Debug("Discovery failed", "remote", remoteIP, "identifier", identifier, slogutil.Error(err))
		writeJSONResponse(w, statusForCode(code), errorResponse{Code: code.String(), Error: err.Error()})
		return
	}

	slog.Debug("Discovery succeeded", "remote", remoteIP, "identifier", identifier, "endpoints", len(res.Endpoints))
	writeJSONResponse(w, http.StatusOK, newDiscoverResponse(identifier, res))
}

func statusForCode(code yadis.ErrorCode) int {
	switch code {
	case yadis.CodeInvalidURL:
		return http.StatusBadRequest
	case yadis.CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *querySrv) remoteIP(req *http.Request) string {
	if s.behindProxy {
		// X-Forwarded-For can have multiple client IPs; the first is the
		// original client
		forwardIP, _, _ := strings.Cut(req.Header.Get("X-Forwarded-For"), ",")
		if ip := net.ParseIP(strings.TrimSpace(forwardIP)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// limit returns true if the client has exceeded its request budget.
func (s *querySrv) limit(remote string) bool {
	if bkt, ok := s.limiter.Get(remote); ok {
		return !bkt.Allow()
	}
	// limitAvg is in requests per ten seconds.
	bkt := rate.NewLimiter(rate.Limit(s.limitAvg)/10, s.limitBurst)
	bkt.Allow()
	s.limiter.Add(remote, bkt)
	return false
}

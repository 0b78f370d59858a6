// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syncthing/yadis/lib/build"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "syncthing",
			Subsystem: "yadisd",
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version, goversion, builduser and builddate from which styadis was built.",
		}, []string{"version", "goversion", "builduser", "builddate"})
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncthing",
			Subsystem: "yadisd",
			Name:      "api_requests_total",
			Help:      "Number of API requests.",
		}, []string{"type", "result"})
	apiRequestsSeconds = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "syncthing",
			Subsystem:  "yadisd",
			Name:       "api_requests_seconds",
			Help:       "Latency of API requests.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"type"})
	limitedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "syncthing",
			Subsystem: "yadisd",
			Name:      "limited_requests_total",
			Help:      "Number of requests rejected by the rate limiter.",
		})
)

func init() {
	prometheus.MustRegister(buildInfo,
		apiRequestsTotal, apiRequestsSeconds,
		limitedRequestsTotal)

	buildInfo.WithLabelValues(build.Version, runtime.Version(), build.User, build.Date.UTC().Format("2006-01-02T15:04:05Z")).Set(1)
}

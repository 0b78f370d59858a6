// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDiscoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncthing",
		Subsystem: "yadis",
		Name:      "discoveries_total",
		Help:      "Total number of discoveries, by result code",
	}, []string{"result"})
	metricDiscoveredEndpoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "syncthing",
		Subsystem: "yadis",
		Name:      "discovered_endpoints",
		Help:      "Number of endpoints returned per successful discovery",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
	})
	metricFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncthing",
		Subsystem: "yadis",
		Name:      "fetches_total",
		Help:      "Total number of HTTP exchanges made during discovery",
	}, []string{"method", "outcome"})
	metricFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncthing",
		Subsystem: "yadis",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of HTTP exchanges made during discovery",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"method"})
)

const (
	resultSuccess = "success"

	fetchOK        = "ok"
	fetchInvalid   = "invalid_response"
	fetchTransport = "transport_error"
)

func init() {
	for _, res := range []string{resultSuccess, "invalid_limits"} {
		metricDiscoveries.WithLabelValues(res)
	}
	for code := range codeNames {
		if code != CodeUnknown {
			metricDiscoveries.WithLabelValues(code.String())
		}
	}
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// Priority is the rank of a service or URI; lower values are preferred.
type Priority int

// NoPriority marks an absent priority attribute. It ranks after all
// present priorities.
const NoPriority Priority = -1

func (p Priority) Present() bool {
	return p >= 0
}

func (p Priority) String() string {
	if !p.Present() {
		return "none"
	}
	return strconv.Itoa(int(p))
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(bs []byte) error {
	if string(bs) == "none" {
		*p = NoPriority
		return nil
	}
	v, err := strconv.Atoi(string(bs))
	if err != nil || v < 0 {
		return fmt.Errorf("invalid priority %q", bs)
	}
	*p = Priority(v)
	return nil
}

// comparePriority orders present priorities ascending with absent ones
// last.
func comparePriority(a, b Priority) int {
	switch {
	case a.Present() && b.Present():
		return cmp.Compare(a, b)
	case a.Present():
		return -1
	case b.Present():
		return 1
	default:
		return 0
	}
}

// An Endpoint is one URI of one service advertised in an XRDS document.
type Endpoint struct {
	URI             string   `json:"uri"`
	Types           []string `json:"types,omitempty"`
	ServicePriority Priority `json:"servicePriority"`
	URIPriority     Priority `json:"uriPriority"`
	LocalID         string   `json:"localID,omitempty"`
	Delegate        string   `json:"delegate,omitempty"`
}

// Priority returns the effective priority: the URI priority when present,
// otherwise the service priority.
func (e Endpoint) Priority() Priority {
	if e.URIPriority.Present() {
		return e.URIPriority
	}
	return e.ServicePriority
}

// HasAnyType returns true if any of the endpoint types is in types.
func (e Endpoint) HasAnyType(types []string) bool {
	for _, t := range e.Types {
		if slices.Contains(types, t) {
			return true
		}
	}
	return false
}

// sortEndpoints orders by effective priority, keeping document order for
// equal priorities.
func sortEndpoints(eps []Endpoint) {
	slices.SortStableFunc(eps, func(a, b Endpoint) int {
		return comparePriority(a.Priority(), b.Priority())
	})
}

// Result is the outcome of one successful discovery.
type Result struct {
	// YadisURL is the identifier after redirects.
	YadisURL *url.URL
	// XRDSLocation is where the XRDS document was read from, or nil when
	// no document was found.
	XRDSLocation *url.URL
	// ContentType is the media type of the response that ended discovery.
	ContentType string
	// XRDS is the raw document text, empty when none was found.
	XRDS      string
	Endpoints []Endpoint
}

// A Record is the reduced form of an Endpoint used when building
// authentication requests.
type Record struct {
	URI      string `json:"uri"`
	Delegate string `json:"delegate,omitempty"`
}

// Records maps the endpoints, in order, to records.
func (r *Result) Records() []Record {
	recs := make([]Record, 0, len(r.Endpoints))
	for _, ep := range r.Endpoints {
		recs = append(recs, Record{URI: ep.URI, Delegate: ep.Delegate})
	}
	return recs
}

func filterEndpoints(eps []Endpoint, acceptedTypes []string) []Endpoint {
	if len(acceptedTypes) == 0 {
		return eps
	}
	kept := eps[:0:0]
	for _, ep := range eps {
		if ep.HasAnyType(acceptedTypes) {
			kept = append(kept, ep)
		}
	}
	return kept
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/syncthing/yadis/lib/fetcher"
	"github.com/syncthing/yadis/lib/yadis"
)

const testXRDS = `<?xml version="1.0"?>
<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD>
<Service priority="1"><Type>http://example.com/</Type><URI>http://server.example.com/</URI></Service>
<Service priority="0"><Type>http://example.com/other</Type><URI>http://other.example.com/</URI></Service>
</XRD></xrds:XRDS>`

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			w.Header().Set("Content-Type", yadis.ContentTypeXRDS)
			if r.Method == http.MethodGet {
				fmt.Fprint(w, testXRDS)
			}
		case r.Method == http.MethodHead:
			w.Header().Set("Content-Type", "text/plain")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testQuerySrv(t *testing.T, limitBurst int) *querySrv {
	t.Helper()
	srv, err := newQuerySrv(querySrvOptions{
		resolver:   yadis.NewResolver(fetcher.NewWithTransport(http.DefaultTransport), yadis.Options{}),
		limitAvg:   1,
		limitBurst: limitBurst,
		limitCache: 16,
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func discoverPath(identifier string, types ...string) string {
	q := url.Values{"identifier": {identifier}}
	for _, t := range types {
		q.Add("type", t)
	}
	return "/v1/discover?" + q.Encode()
}

func TestHandleDiscover(t *testing.T) {
	up := upstream(t)
	h := testQuerySrv(t, 100).router()

	rec := get(t, h, discoverPath(up.URL+"/"), "192.0.2.1:1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp discoverResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Endpoints) != 2 || resp.Endpoints[0].URI != "http://other.example.com/" {
		t.Errorf("unexpected endpoints %+v", resp.Endpoints)
	}
	if len(resp.Records) != 2 || resp.XRDSLocation != up.URL+"/" {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = get(t, h, discoverPath(up.URL+"/", "http://example.com/"), "192.0.2.1:1234")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Endpoints) != 1 || resp.Endpoints[0].URI != "http://server.example.com/" {
		t.Errorf("unexpected filtered endpoints %+v", resp.Endpoints)
	}
}

func TestHandleDiscoverErrors(t *testing.T) {
	up := upstream(t)
	h := testQuerySrv(t, 100).router()

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/v1/discover", http.StatusBadRequest, "INVALID_URL"},
		{discoverPath("bla bla"), http.StatusBadRequest, "INVALID_URL"},
		{discoverPath(up.URL + "/missing"), http.StatusBadGateway, "GET_ERROR"},
	}

	for _, tc := range cases {
		rec := get(t, h, tc.path, "192.0.2.1:1234")
		if rec.Code != tc.status {
			t.Errorf("%s: status %d != %d", tc.path, rec.Code, tc.status)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Code != tc.code {
			t.Errorf("%s: code %q != %q", tc.path, resp.Code, tc.code)
		}
	}
}

func TestHandleDiscoverRateLimit(t *testing.T) {
	h := testQuerySrv(t, 2).router()
	path := discoverPath("bla bla")

	for i := 0; i < 2; i++ {
		if rec := get(t, h, path, "192.0.2.1:1234"); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := get(t, h, path, "192.0.2.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limiting, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After")
	}

	// Other clients have their own budget
	if rec := get(t, h, path, "192.0.2.2:1234"); rec.Code != http.StatusBadRequest {
		t.Errorf("other client: status %d", rec.Code)
	}
}

func TestRemoteIPBehindProxy(t *testing.T) {
	srv := testQuerySrv(t, 1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", " 192.0.2.7 , 10.0.0.1")

	if ip := srv.remoteIP(req); ip != "10.0.0.1" {
		t.Errorf("without proxy trust: %q", ip)
	}
	srv.behindProxy = true
	if ip := srv.remoteIP(req); ip != "192.0.2.7" {
		t.Errorf("with proxy trust: %q", ip)
	}
}

func TestPing(t *testing.T) {
	h := testQuerySrv(t, 1).router()
	if rec := get(t, h, "/ping", "192.0.2.1:1"); rec.Code != http.StatusNoContent {
		t.Errorf("status %d", rec.Code)
	}
}

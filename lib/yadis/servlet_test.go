// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis_test

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/syncthing/yadis/lib/yadis"
)

// newServlet starts a server answering from the files in testdata:
//
//	headers=NAME     response headers for HEAD and GET, one per line;
//	                 a "Status" line sets the status code
//	getheaders=NAME  response headers for GET only, instead of headers
//	html=NAME        GET body from html/NAME.html as text/html
//	xrds=NAME        GET body from xrds/NAME.xml as application/xrds+xml
//
// A missing body file is a 404 for GET only.
//
// The string {{SERVER}} in any file is replaced by the server URL.
func newServlet(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		read := func(dir, name, ext string) ([]byte, bool) {
			bs, err := os.ReadFile(filepath.Join("testdata", dir, filepath.Base(name)+ext))
			if err != nil {
				return nil, false
			}
			return bytes.ReplaceAll(bs, []byte("{{SERVER}}"), []byte(srv.URL)), true
		}

		q := r.URL.Query()
		status := http.StatusOK
		var body []byte
		if name := q.Get("html"); name != "" {
			var ok bool
			if body, ok = read("html", name, ".html"); !ok && r.Method == http.MethodGet {
				status = http.StatusNotFound
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		} else if name := q.Get("xrds"); name != "" {
			var ok bool
			if body, ok = read("xrds", name, ".xml"); !ok && r.Method == http.MethodGet {
				status = http.StatusNotFound
			}
			w.Header().Set("Content-Type", yadis.ContentTypeXRDS)
		}

		headers := q.Get("headers")
		if r.Method == http.MethodGet && q.Has("getheaders") {
			headers = q.Get("getheaders")
		}
		if headers != "" {
			hdrs, ok := read("headers", headers, ".txt")
			if !ok {
				http.NotFound(w, r)
				return
			}
			overridden := make(map[string]bool)
			sc := bufio.NewScanner(bytes.NewReader(hdrs))
			for sc.Scan() {
				key, val, ok := strings.Cut(sc.Text(), ":")
				if !ok {
					continue
				}
				key, val = strings.TrimSpace(key), strings.TrimSpace(val)
				if key == "Status" {
					status, _ = strconv.Atoi(val)
					continue
				}
				if !overridden[key] {
					w.Header().Del(key)
					overridden[key] = true
				}
				w.Header().Add(key, val)
			}
		}

		w.WriteHeader(status)
		if r.Method == http.MethodGet && status == http.StatusOK {
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

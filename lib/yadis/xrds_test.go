// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/d4l3k/messagediff"
)

func readXRDS(t *testing.T, name string) []byte {
	t.Helper()
	bs, err := os.ReadFile(filepath.Join("testdata", "xrds", name+".xml"))
	if err != nil {
		t.Fatal(err)
	}
	return bs
}

func endpointURIs(eps []Endpoint) []string {
	uris := make([]string, 0, len(eps))
	for _, ep := range eps {
		uris = append(uris, ep.URI)
	}
	return uris
}

func TestParseXRDSSimple(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "simplexrds"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	expected := []Endpoint{{
		URI:             "http://www.myopenid.com/server",
		Types:           []string{"http://example.com/"},
		ServicePriority: 0,
		URIPriority:     NoPriority,
	}}
	if diff, equal := messagediff.PrettyDiff(expected, eps); !equal {
		t.Errorf("unexpected endpoints. Diff:\n%s", diff)
	}
}

func TestParseXRDSDelegate(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "xrdsdelegate"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected one endpoint, got %d", len(eps))
	}
	if eps[0].Delegate != "http://smoker.myopenid.com/" {
		t.Errorf("unexpected delegate %q", eps[0].Delegate)
	}
	if eps[0].Priority() != 10 {
		t.Errorf("unexpected priority %v", eps[0].Priority())
	}
}

func TestParseXRDSPriorityOrder(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "priority"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"http://b.example.com/", "http://a.example.com/", "http://c.example.com/"}
	if diff, equal := messagediff.PrettyDiff(expected, endpointURIs(eps)); !equal {
		t.Errorf("unexpected order. Diff:\n%s", diff)
	}
	if eps[2].Priority().Present() {
		t.Error("third endpoint should have no priority")
	}
}

func TestParseXRDSLastXRD(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "multixrd"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}

	// URI priorities override the service priority; the service without
	// a URI yields nothing.
	expected := []string{"http://server.example.com/", "http://primary.example.com/", "http://backup.example.com/"}
	if diff, equal := messagediff.PrettyDiff(expected, endpointURIs(eps)); !equal {
		t.Errorf("unexpected order. Diff:\n%s", diff)
	}
	if eps[1].LocalID != "http://alice.example.com/" || eps[1].ServicePriority != 0 || eps[1].URIPriority != 10 {
		t.Errorf("unexpected primary endpoint %+v", eps[1])
	}
}

func TestParseXRDSStableTies(t *testing.T) {
	doc := `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD>
	<Service><URI>http://1/</URI><URI>http://2/</URI></Service>
	<Service priority="3"><URI>http://3/</URI></Service>
	<Service><URI>http://4/</URI></Service>
	<Service priority="3"><URI>http://5/</URI></Service>
	</XRD></xrds:XRDS>`

	for i := 0; i < 10; i++ {
		eps, err := parseXRDS([]byte(doc), "")
		if err != nil {
			t.Fatal(err)
		}
		expected := []string{"http://3/", "http://5/", "http://1/", "http://2/", "http://4/"}
		if diff, equal := messagediff.PrettyDiff(expected, endpointURIs(eps)); !equal {
			t.Fatalf("unexpected order. Diff:\n%s", diff)
		}
	}
}

func TestParseXRDSEmpty(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "noservices"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 0 {
		t.Errorf("expected no endpoints, got %d", len(eps))
	}
}

func TestParseXRDSEmptyURIKept(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "malformedxrds6"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 1 || eps[0].URI != "" {
		t.Errorf("expected one endpoint with empty URI, got %+v", eps)
	}
}

func TestParseXRDSLenientURI(t *testing.T) {
	eps, err := parseXRDS(readXRDS(t, "malformedxrds5"), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 1 || eps[0].URI != "bla bla" {
		t.Errorf("expected the relative URI to be kept, got %+v", eps)
	}
}

func TestParseXRDSFailures(t *testing.T) {
	cases := map[string]string{
		"unterminated element": string(readXRDS(t, "malformedxrds1")),
		"trailing element":     string(readXRDS(t, "malformedxrds2")),
		"bad URI":              string(readXRDS(t, "malformedxrds3")),
		"bad priority":         string(readXRDS(t, "malformedxrds4")),
		"empty":                "",
		"not xml":              "<html><body>hello</body></html>",
		"wrong namespace":      `<XRDS xmlns="urn:other"><XRD/></XRDS>`,
		"no XRD":               `<xrds:XRDS xmlns:xrds="xri://$xrds"/>`,
		"trailing text":        `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD/></xrds:XRDS>garbage`,
		"negative priority":    `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD><Service priority="-1"><URI>http://x/</URI></Service></XRD></xrds:XRDS>`,
		"bad URI priority":     `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD><Service><URI priority="1.5">http://x/</URI></Service></XRD></xrds:XRDS>`,
		"unknown encoding":     `<?xml version="1.0" encoding="x-no-such-charset"?><xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD/></xrds:XRDS>`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseXRDS([]byte(doc), ContentTypeXRDS)
			if !errors.Is(err, ErrXRDSParsingError) {
				t.Errorf("expected XRDS parsing error, got %v", err)
			}
		})
	}
}

func TestParseXRDSTrailingMisc(t *testing.T) {
	doc := `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD/></xrds:XRDS>
<!-- generated --><?pi data?>
`
	if _, err := parseXRDS([]byte(doc), ContentTypeXRDS); err != nil {
		t.Error(err)
	}
}

func TestParseXRDSCharset(t *testing.T) {
	const typ = "http://example.com/caf\xe9"
	doc := `<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)"><XRD><Service><Type>` + typ + `</Type><URI>http://x/</URI></Service></XRD></xrds:XRDS>`

	// Declared in the XML prolog
	eps, err := parseXRDS([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>`+doc), ContentTypeXRDS)
	if err != nil {
		t.Fatal(err)
	}
	if eps[0].Types[0] != "http://example.com/café" {
		t.Errorf("unexpected type %q", eps[0].Types[0])
	}

	// Declared in the content type only
	eps, err = parseXRDS([]byte(doc), ContentTypeXRDS+"; charset=iso-8859-1")
	if err != nil {
		t.Fatal(err)
	}
	if eps[0].Types[0] != "http://example.com/café" {
		t.Errorf("unexpected type %q", eps[0].Types[0])
	}

	// Undeclared Latin-1 is not valid UTF-8
	if _, err := parseXRDS([]byte(doc), ContentTypeXRDS); !errors.Is(err, ErrXRDSParsingError) {
		t.Errorf("expected parse error for invalid UTF-8, got %v", err)
	}
}

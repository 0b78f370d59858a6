// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Element names are qualified with the XRDS, XRD 2.0 and OpenID 1.0
// namespaces respectively.
type xrdsDocument struct {
	XMLName xml.Name     `xml:"xri://$xrds XRDS"`
	XRDs    []xrdElement `xml:"xri://$xrd*($v*2.0) XRD"`
}

type xrdElement struct {
	Services []xrdService `xml:"xri://$xrd*($v*2.0) Service"`
}

type xrdService struct {
	Priority *string  `xml:"priority,attr"`
	Types    []string `xml:"xri://$xrd*($v*2.0) Type"`
	URIs     []xrdURI `xml:"xri://$xrd*($v*2.0) URI"`
	LocalID  string   `xml:"xri://$xrd*($v*2.0) LocalID"`
	Delegate string   `xml:"http://openid.net/xmlns/1.0 Delegate"`
}

type xrdURI struct {
	Priority *string `xml:"priority,attr"`
	Value    string  `xml:",chardata"`
}

var errNoXRD = errors.New("no XRD element")

// parseXRDS decodes an XRDS document and returns the endpoints of its
// last XRD, ranked. contentType is the declared media type of the body and
// supplies the charset when the XML declaration does not.
func parseXRDS(body []byte, contentType string) ([]Endpoint, error) {
	eps, err := decodeXRDS(body, contentType)
	if err != nil {
		return nil, newError(CodeXRDSParsingError, err, "parse XRDS")
	}
	return eps, nil
}

func decodeXRDS(body []byte, contentType string) ([]Endpoint, error) {
	var r io.Reader = bytes.NewReader(body)
	if label := contentCharset(contentType); label != "" && !hasXMLEncoding(body) {
		cr, err := charset.NewReaderLabel(label, r)
		if err != nil {
			return nil, err
		}
		r = cr
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc xrdsDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	if len(doc.XRDs) == 0 {
		return nil, errNoXRD
	}

	xrd := doc.XRDs[len(doc.XRDs)-1]
	var eps []Endpoint
	for i, svc := range xrd.Services {
		svcPrio, err := parsePriority(svc.Priority)
		if err != nil {
			return nil, fmt.Errorf("service %d: %w", i, err)
		}
		types := make([]string, 0, len(svc.Types))
		for _, t := range svc.Types {
			types = append(types, strings.TrimSpace(t))
		}
		for j, u := range svc.URIs {
			uriPrio, err := parsePriority(u.Priority)
			if err != nil {
				return nil, fmt.Errorf("service %d, URI %d: %w", i, j, err)
			}
			uri := strings.TrimSpace(u.Value)
			if uri != "" {
				if _, err := url.Parse(uri); err != nil {
					return nil, fmt.Errorf("service %d: %w", i, err)
				}
			}
			eps = append(eps, Endpoint{
				URI:             uri,
				Types:           types,
				ServicePriority: svcPrio,
				URIPriority:     uriPrio,
				LocalID:         strings.TrimSpace(svc.LocalID),
				Delegate:        strings.TrimSpace(svc.Delegate),
			})
		}
	}

	sortEndpoints(eps)
	return eps, nil
}

func parsePriority(attr *string) (Priority, error) {
	if attr == nil {
		return NoPriority, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*attr))
	if err != nil {
		return NoPriority, fmt.Errorf("invalid priority %q", *attr)
	}
	if n < 0 {
		return NoPriority, fmt.Errorf("negative priority %d", n)
	}
	return Priority(n), nil
}

// expectEOF fails if anything but whitespace, comments or processing
// instructions follows the root element.
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("character data after root element")
			}
		default:
			return fmt.Errorf("unexpected %T after root element", tok)
		}
	}
}

func contentCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	label := strings.ToLower(params["charset"])
	if label == "utf-8" || label == "utf8" {
		return ""
	}
	return label
}

func hasXMLEncoding(body []byte) bool {
	body = bytes.TrimLeft(body, "\xef\xbb\xbf \t\r\n")
	if !bytes.HasPrefix(body, []byte("<?xml")) {
		return false
	}
	end := bytes.Index(body, []byte("?>"))
	if end < 0 {
		return false
	}
	return bytes.Contains(body[:end], []byte("encoding"))
}

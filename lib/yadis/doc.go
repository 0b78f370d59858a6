// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

/*
Package yadis implements Yadis service discovery for identifier URLs.

Discovery
=========

A Resolver turns an identifier URL into the ranked list of service
endpoints advertised in the identifier's XRDS document. The negotiation is
a small state machine over at most three HTTP exchanges:

 1. HEAD on the identifier, offering application/xrds+xml. A single
    X-XRDS-Location header, or an XRDS content type, points at the
    document.
 2. Otherwise GET on the identifier. The response either carries a single
    X-XRDS-Location header, is itself the XRDS document, or is an HTML page
    whose head holds a single <meta http-equiv="X-XRDS-Location"> tag.
 3. GET on the location found in 1 or 2, yielding the XRDS document.

An identifier without any location signal is not an error; discovery
succeeds with zero endpoints. Every failure is reported as an *Error with
exactly one ErrorCode describing where the protocol broke down.

Fetching
========

The package does not talk HTTP itself. All exchanges go through a Fetcher,
which is expected to follow redirects, enforce the per-request timeout and
stop reading bodies at the configured size limit. See package
lib/fetcher for the net/http based implementation.
*/
package yadis

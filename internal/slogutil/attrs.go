// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"log/slog"
	"net/url"
)

// Error returns an attribute for the given error, or an empty (ignored)
// attribute for a nil error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// URI returns an attribute for the given URL with any user info redacted.
func URI(key string, u *url.URL) slog.Attr {
	if u == nil {
		return slog.Attr{}
	}
	return slog.String(key, u.Redacted())
}

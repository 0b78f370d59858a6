// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"log/slog"
)

// Expensive defers computing an attribute value until a record is
// actually written, so filtered debug lines cost nothing.
func Expensive(fn func() any) slog.LogValuer {
	return lazyValue(fn)
}

type lazyValue func() any

func (fn lazyValue) LogValue() slog.Value {
	if fn == nil {
		return slog.Value{}
	}
	return slog.AnyValue(fn())
}

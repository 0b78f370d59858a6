// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package automaxprocs sets GOMAXPROCS from the container CPU quota when
// imported.
package automaxprocs

import (
	"fmt"
	"log/slog"

	"go.uber.org/automaxprocs/maxprocs"
)

func init() {
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		slog.Debug("Failed to set GOMAXPROCS", "error", err)
	}
}

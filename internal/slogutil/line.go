// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

var DefaultLineFormat = LineFormat{
	TimestampFormat: time.DateTime,
	LevelString:     true,
}

// A Line is one formatted log entry.
type Line struct {
	When    time.Time  `json:"time"`
	Message string     `json:"message"`
	Level   slog.Level `json:"level"`
}

func (l Line) WriteTo(w io.Writer, f LineFormat) (int64, error) {
	var sb strings.Builder
	if f.LevelSyslog {
		// Severity per RFC 5424: 7 debug, 6 info, 4 warning, 3 error
		fmt.Fprintf(&sb, "<%d>", syslogSeverity(l.Level))
	}
	if f.TimestampFormat != "" {
		sb.WriteString(l.When.Format(f.TimestampFormat))
		sb.WriteRune(' ')
	}
	if f.LevelString {
		sb.WriteString(levelString(l.Level))
		sb.WriteRune(' ')
	}
	sb.WriteString(l.Message)
	sb.WriteRune('\n')
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func levelString(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

func syslogSeverity(l slog.Level) int {
	switch {
	case l < slog.LevelInfo:
		return 7
	case l < slog.LevelWarn:
		return 6
	case l < slog.LevelError:
		return 4
	default:
		return 3
	}
}

// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxRedirects = 10
	DefaultMaxBodySize  = 100 << 10 // 100 KiB
	DefaultTimeout      = 30 * time.Second
)

var ErrInvalidLimits = errors.New("invalid discovery limits")

// Limits bound every HTTP exchange made during one discovery.
type Limits struct {
	MaxRedirects int           `json:"maxRedirects" yaml:"maxRedirects"`
	MaxBodySize  int64         `json:"maxBodySize" yaml:"maxBodySize"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"` // per exchange
}

func DefaultLimits() Limits {
	return Limits{
		MaxRedirects: DefaultMaxRedirects,
		MaxBodySize:  DefaultMaxBodySize,
		Timeout:      DefaultTimeout,
	}
}

func (l Limits) IsZero() bool {
	return l == Limits{}
}

// Validate returns an error wrapping ErrInvalidLimits unless the body size
// and timeout are positive. Zero redirects is valid and means redirects
// are not followed.
func (l Limits) Validate() error {
	switch {
	case l.MaxRedirects < 0:
		return fmt.Errorf("%w: negative redirect count %d", ErrInvalidLimits, l.MaxRedirects)
	case l.MaxBodySize <= 0:
		return fmt.Errorf("%w: body size %d not positive", ErrInvalidLimits, l.MaxBodySize)
	case l.Timeout <= 0:
		return fmt.Errorf("%w: timeout %v not positive", ErrInvalidLimits, l.Timeout)
	}
	return nil
}

func (l Limits) String() string {
	return fmt.Sprintf("redirects=%d body=%d timeout=%v", l.MaxRedirects, l.MaxBodySize, l.Timeout)
}

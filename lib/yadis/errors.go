// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"errors"
	"fmt"
	"strings"
)

// An ErrorCode says where in the discovery protocol a failure occurred.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidURL
	CodeHeadTransportError
	CodeHeadInvalidResponse
	CodeGetTransportError
	CodeGetError
	CodeGetInvalidResponse
	CodeHTMLMetaInvalidResponse
	CodeXRDSSizeExceeded
	CodeXRDSParsingError
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:                 "UNKNOWN",
	CodeInvalidURL:              "INVALID_URL",
	CodeHeadTransportError:      "HEAD_TRANSPORT_ERROR",
	CodeHeadInvalidResponse:     "HEAD_INVALID_RESPONSE",
	CodeGetTransportError:       "GET_TRANSPORT_ERROR",
	CodeGetError:                "GET_ERROR",
	CodeGetInvalidResponse:      "GET_INVALID_RESPONSE",
	CodeHTMLMetaInvalidResponse: "HTMLMETA_INVALID_RESPONSE",
	CodeXRDSSizeExceeded:        "XRDS_SIZE_EXCEEDED",
	CodeXRDSParsingError:        "XRDS_PARSING_ERROR",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ParseErrorCode is the inverse of ErrorCode.String.
func ParseErrorCode(s string) (ErrorCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for c, name := range codeNames {
		if name == s {
			return c, nil
		}
	}
	return CodeUnknown, fmt.Errorf("unknown error code %q", s)
}

// Error is the failure returned from discovery. Code is fixed at the point
// the failure was detected and never changes while the error propagates.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error // underlying cause, may be nil
}

// Sentinels for use with errors.Is; an *Error matches the sentinel with
// the same Code.
var (
	ErrInvalidURL              = &Error{Code: CodeInvalidURL}
	ErrHeadTransportError      = &Error{Code: CodeHeadTransportError}
	ErrHeadInvalidResponse     = &Error{Code: CodeHeadInvalidResponse}
	ErrGetTransportError       = &Error{Code: CodeGetTransportError}
	ErrGetError                = &Error{Code: CodeGetError}
	ErrGetInvalidResponse      = &Error{Code: CodeGetInvalidResponse}
	ErrHTMLMetaInvalidResponse = &Error{Code: CodeHTMLMetaInvalidResponse}
	ErrXRDSSizeExceeded        = &Error{Code: CodeXRDSSizeExceeded}
	ErrXRDSParsingError        = &Error{Code: CodeXRDSParsingError}
)

func newError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("yadis: ")
	sb.WriteString(e.Code.String())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// selectUnique implements the "exactly one location signal" rule shared by
// response headers and HTML meta tags. It returns the single value, found
// false for no values, or an error carrying code when the signal is
// ambiguous.
func selectUnique(values []string, code ErrorCode, what string) (value string, found bool, err error) {
	switch len(values) {
	case 0:
		return "", false, nil
	case 1:
		return values[0], true, nil
	default:
		return "", false, newError(code, nil, "found %d %s, expected at most one", len(values), what)
	}
}

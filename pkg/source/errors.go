/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package source pkg/source/errors.go defines the typed failures every source
// client folds its errors into.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a source failure.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindHTTP        Kind = "http_error"
	KindParse       Kind = "parse_error"
	KindTimeout     Kind = "timeout"
)

var (
	ErrUnreachable = errors.New("source unreachable")
	ErrHTTP        = errors.New("source returned non-success status")
	ErrParse       = errors.New("source payload malformed")
	ErrTimeout     = errors.New("source timed out")
)

// Error is the only error type returned across the source client boundary.
type Error struct {
	Source     string `json:"source"`
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Source, e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrParse:
		return e.Kind == KindParse
	case ErrTimeout:
		return e.Kind == KindTimeout
	default:
		return false
	}
}

// NewError builds a typed source error.
func NewError(source string, kind Kind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a source error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	return ""
}

// classifyTransport folds a transport-level failure into a source error.
func classifyTransport(source string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	if isTimeout(err) {
		return NewError(source, KindTimeout, err)
	}

	return NewError(source, KindUnreachable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// Wrap converts any error into a source error for the named source.
func Wrap(source string, err error) error {
	if err == nil {
		return nil
	}

	return classifyTransport(source, err)
}

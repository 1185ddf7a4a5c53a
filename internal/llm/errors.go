// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures at the model boundary.
type ErrorKind string

const (
	// Timeout means an attempt ran past its deadline.
	Timeout ErrorKind = "timeout"
	// SchemaMismatch means the reply did not decode into the expected record.
	SchemaMismatch ErrorKind = "schema_mismatch"
	// Unavailable covers transport failures, throttling and empty replies.
	Unavailable ErrorKind = "unavailable"
)

// Error is returned by every Client method.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a model error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// transportError wraps a completer failure with the matching kind.
func transportError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Op: op, Err: err}
	}
	return &Error{Kind: Unavailable, Op: op, Err: err}
}

/*
 * Copyright 2024 ScopeDB, Inc.
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

package cubesql

import (
	"errors"
	"fmt"

	"github.com/borodark/adbc-driver-cube/internal/columnar"
	"github.com/borodark/adbc-driver-cube/internal/session"
)

// ErrorKind is the abstract error taxonomy every operation in this package
// reports through: re-exported from internal/session so callers never need
// to import that package directly.
type ErrorKind = session.ErrorKind

const (
	InvalidArgument = session.InvalidArgument
	InvalidState    = session.InvalidState
	IO              = session.IO
	Unauthenticated = session.Unauthenticated
	InvalidData     = session.InvalidData
	Unknown         = session.Unknown
	NotImplemented  = session.NotImplemented
)

// Error is the concrete error type every operation in this package returns.
type Error = session.Error

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error (at any wrapping depth) of the given Kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// asDriverError normalizes an error surfaced by internal/columnar's decoder
// (which uses its own untyped errInvalidData sentinel) into this package's
// *Error with Kind InvalidData.
func asDriverError(err error) error {
	if err == nil {
		return nil
	}
	if columnar.IsInvalidData(err) {
		return newError(InvalidData, "%s", err.Error())
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(Unknown, "%s", err.Error())
}

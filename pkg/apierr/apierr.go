// Copyright 2025 AUTHORS
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

// Package apierr defines the structured error carried across every service
// boundary in the daemon: the IPC wire, the entity store, and the service
// actors all speak the same {code, message} shape.
package apierr

import "fmt"

// Code is a stable, wire-safe error classification. Codes never change
// spelling across releases: clients pattern-match on them.
type Code string

const (
	InvalidArgument Code = "invalidArgument"
	NotFound        Code = "notFound"
	Exists          Code = "exists"
	InvalidState    Code = "invalidState"
	Unsupported     Code = "unsupported"
	Interrupted     Code = "interrupted"
	InternalError   Code = "internalError"
	Unknown         Code = "unknown"
)

// Error is the structured error that crosses the IPC wire in the message's
// reserved error slot.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, apierr.NotFoundError("")) match on code alone when
// the sentinel's Message is empty.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Code == t.Code
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgumentf(format string, args ...any) *Error {
	return New(InvalidArgument, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

func Existsf(format string, args ...any) *Error {
	return New(Exists, format, args...)
}

func InvalidStatef(format string, args ...any) *Error {
	return New(InvalidState, format, args...)
}

func Unsupportedf(format string, args ...any) *Error {
	return New(Unsupported, format, args...)
}

func Interruptedf(format string, args ...any) *Error {
	return New(Interrupted, format, args...)
}

func InternalErrorf(format string, args ...any) *Error {
	return New(InternalError, format, args...)
}

func Unknownf(format string, args ...any) *Error {
	return New(Unknown, format, args...)
}

// From converts an arbitrary error into a structured Error, classifying it
// as Unknown unless it is already one of ours.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Unknownf("%v", err)
}

// VolumeInUse is a convenience constructor for the volumes-in-use cross
// service invariant (spec: deleting a volume referenced by a container's
// mount).
func VolumeInUse(name string) *Error {
	return InvalidStatef("volume %q is in use", name)
}

// PluginNotFound and PluginNotLoaded distinguish "never discovered" from
// "discovered but not registered with the supervisor".
func PluginNotFound(name string) *Error {
	return NotFoundf("plugin %q not found", name)
}

func PluginNotLoaded(name string) *Error {
	return InvalidStatef("plugin %q not loaded", name)
}

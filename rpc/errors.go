// Copyright 2026 The golem-unlimited Authors
// This file is part of the golem-unlimited library.
//
// The golem-unlimited library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The golem-unlimited library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the golem-unlimited library. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDestination is returned when there is no route to the target, either
	// locally or on the remote node.
	ErrNoDestination = errors.New("no destination")

	// ErrNotConnected is returned by emits to nodes without a live transport.
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrNoDestination)

	// ErrMailBox is returned when a local queue or a transport is gone.
	// Transports wrap it to signal that they are closed for good.
	ErrMailBox = errors.New("mailbox closed")

	// ErrRouterClosed is returned by operations on a closed router.
	ErrRouterClosed = fmt.Errorf("router closed: %w", ErrMailBox)

	// ErrCanceled is returned when a call is abandoned before its reply arrives.
	ErrCanceled = errors.New("call canceled")

	ErrGenBody   = errors.New("failed to encode body")
	ErrParseBody = errors.New("failed to parse body")
)

// TransportErrorKind enumerates the errors a reply can carry instead of a body.
type TransportErrorKind int

const (
	NoDestination TransportErrorKind = iota
	BadFormat
)

// TransportError is the failure side of a reply body.
type TransportError struct {
	Kind TransportErrorKind
	Msg  string
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case NoDestination:
		return "no destination"
	default:
		return "bad format: " + e.Msg
	}
}

// Is lets errors.Is(err, ErrNoDestination) match remote routing misses.
func (e *TransportError) Is(target error) bool {
	return target == ErrNoDestination && e.Kind == NoDestination
}

// BodyError reports a failure to encode a request or decode a reply.
type BodyError struct {
	Gen  bool   // true when encoding the request failed
	Body string // the offending body, or the remote error text
	Err  error  // underlying codec error, nil for remote BadFormat replies
}

func (e *BodyError) Error() string {
	switch {
	case e.Gen:
		return fmt.Sprintf("gen body: %v", e.Err)
	case e.Err == nil:
		return "parse request :: " + e.Body
	default:
		return fmt.Sprintf("parse body: %v", e.Err)
	}
}

func (e *BodyError) Unwrap() error { return e.Err }

func (e *BodyError) Is(target error) bool {
	if e.Gen {
		return target == ErrGenBody
	}
	return target == ErrParseBody
}

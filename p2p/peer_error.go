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

package p2p

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/gorilla/websocket"
)

var (
	// ErrPeerClosed is returned by Send once the connection stopped accepting
	// frames. It wraps rpc.ErrMailBox, which makes the router evict the peer.
	ErrPeerClosed = fmt.Errorf("peer closed: %w", rpc.ErrMailBox)

	errServerStopped = errors.New("server stopped")
	errSelfConnect   = errors.New("connected to self")
	errRequested     = errors.New("disconnect requested")
	errReplaced      = errors.New("replaced by a newer connection")
)

// ErrorCode classifies why a connection was torn down.
type ErrorCode int

const (
	ProtocolBreach ErrorCode = iota
	HandshakeFailed
	InvalidFrame
	PingTimeout
)

var errorToString = map[ErrorCode]string{
	ProtocolBreach:  "protocol breach",
	HandshakeFailed: "handshake failed",
	InvalidFrame:    "invalid frame",
	PingTimeout:     "ping timeout",
}

// protoError is a protocol violation by the remote side. The connection is
// closed with a protocol-error close frame.
type protoError struct {
	Code ErrorCode
	err  error
}

func newProtoError(code ErrorCode, format string, v ...interface{}) *protoError {
	return &protoError{Code: code, err: fmt.Errorf(format, v...)}
}

func (e *protoError) Error() string {
	return errorToString[e.Code] + ": " + e.err.Error()
}

func (e *protoError) Unwrap() error { return e.err }

// closeCode returns the websocket close code sent when a connection ends
// because of err.
func closeCode(err error) int {
	var perr *protoError
	switch {
	case errors.As(err, &perr):
		return websocket.CloseProtocolError
	case errors.Is(err, errServerStopped):
		return websocket.CloseGoingAway
	default:
		return websocket.CloseNormalClosure
	}
}

// maxCloseText is the room left for the reason in a close frame. Control
// frames are limited to 125 bytes, two of which carry the code.
const maxCloseText = 123

// closeText returns the reason text for a close frame, cut at a rune
// boundary so that it stays valid UTF-8.
func closeText(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) <= maxCloseText {
		return s
	}
	n := maxCloseText
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

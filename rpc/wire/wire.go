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

// Package wire implements the binary record format exchanged between nodes.
//
// Every websocket binary frame carries exactly one record. A connection starts
// with a Hello from the dialing side answered by a HelloReply; all later frames
// are Messages. Records are sequences of tagged fields using the protocol
// buffers encoding: varint tags, varint scalars and length-prefixed bytes and
// strings. Unknown fields are skipped. Zero values are not written, so an
// absent optional field decodes as its zero value.
package wire

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTruncated is returned when a record ends in the middle of a field.
	ErrTruncated = errors.New("wire: truncated record")
	// ErrMalformed is returned for invalid tags, overlong varints and
	// fields encoded with an unexpected wire type.
	ErrMalformed = errors.New("wire: malformed record")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("wire: missing required field")
)

// Role is the part a node declares it plays in the network.
type Role int32

const (
	RoleHub      Role = 1
	RoleProvider Role = 2
	RoleBoth     Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleHub:
		return "hub"
	case RoleProvider:
		return "provider"
	case RoleBoth:
		return "both"
	default:
		return fmt.Sprintf("role(%d)", int32(r))
	}
}

// ParseRole parses the textual form of a role, case insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "hub":
		return RoleHub, nil
	case "provider":
		return RoleProvider, nil
	case "both":
		return RoleBoth, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("invalid role %d", int32(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	v, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (r Role) valid() bool {
	return r >= RoleHub && r <= RoleBoth
}

// Status discriminates the kinds of Message.
type Status int32

const (
	StatusRequest       Status = 0
	StatusReply         Status = 1
	StatusEvent         Status = 2
	StatusNoDestination Status = 100
	StatusBadFormat     Status = 101
)

func (s Status) String() string {
	switch s {
	case StatusRequest:
		return "request"
	case StatusReply:
		return "reply"
	case StatusEvent:
		return "event"
	case StatusNoDestination:
		return "no-destination"
	case StatusBadFormat:
		return "bad-format"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// IsReply reports whether messages with this status are delivered to reply
// destinations.
func (s Status) IsReply() bool {
	return s == StatusReply || s == StatusNoDestination || s == StatusBadFormat
}

func (s Status) valid() bool {
	switch s {
	case StatusRequest, StatusReply, StatusEvent, StatusNoDestination, StatusBadFormat:
		return true
	}
	return false
}

// Hello is sent once by the dialing node right after the connection opens.
type Hello struct {
	Role       Role
	NodeName   string
	NodeID     []byte
	InstanceID []byte
	Version    string
	OS         string
	MaxRAM     uint64
	MaxStorage uint64
	ExecEnvs   []string
}

// HelloReply answers a Hello and completes the handshake.
type HelloReply struct {
	Role      Role
	NodeName  string
	NodeID    []byte
	Version   string
	MaxPingMs int32
}

// Message carries requests, replies and events once the handshake is done.
// Payload holds JSON for requests, events and successful replies, and an
// error text for NoDestination and BadFormat replies.
type Message struct {
	MessageID     []byte
	DestinationID []byte
	CorrelationID []byte
	Status        Status
	ReplyTo       []byte
	Ts            uint64
	Expires       uint64
	Payload       string
}

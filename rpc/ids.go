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
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/golemfactory/golem-unlimited/common/hexutil"
)

// IDLength is the length of destination and message identifiers.
const IDLength = 8

// publicPrefix marks the upper half of public destination ids.
const publicPrefix = 0xdeadbeef

// DestinationID addresses an endpoint within a node. Public destinations are
// derived from well-known numbers by PublicDestination, reply destinations are
// random. The zero value means "no destination".
type DestinationID [IDLength]byte

// MessageID identifies one routed message. The zero value means "no id".
type MessageID [IDLength]byte

// PublicDestination returns the well-known destination for service number id.
func PublicDestination(id uint32) DestinationID {
	var d DestinationID
	binary.BigEndian.PutUint32(d[:4], publicPrefix)
	binary.BigEndian.PutUint32(d[4:], id)
	return d
}

// GenDestinationID returns a fresh random destination id.
func GenDestinationID() DestinationID {
	return DestinationID(randomID())
}

// NewMessageID returns a fresh random message id.
func NewMessageID() MessageID {
	return MessageID(randomID())
}

func randomID() (id [IDLength]byte) {
	for id == ([IDLength]byte{}) {
		if _, err := rand.Read(id[:]); err != nil {
			panic("can't read random bytes: " + err.Error())
		}
	}
	return id
}

// DestinationIDFromBytes converts a raw wire value.
func DestinationIDFromBytes(b []byte) (DestinationID, error) {
	var d DestinationID
	if len(b) != IDLength {
		return d, fmt.Errorf("invalid destination id length %d", len(b))
	}
	copy(d[:], b)
	return d, nil
}

// MessageIDFromBytes converts a raw wire value.
func MessageIDFromBytes(b []byte) (MessageID, error) {
	var m MessageID
	if len(b) != IDLength {
		return m, fmt.Errorf("invalid message id length %d", len(b))
	}
	copy(m[:], b)
	return m, nil
}

// IsZero reports whether d is unset.
func (d DestinationID) IsZero() bool { return d == DestinationID{} }

// Public returns the service number of a public destination.
func (d DestinationID) Public() (uint32, bool) {
	if binary.BigEndian.Uint32(d[:4]) != publicPrefix {
		return 0, false
	}
	return binary.BigEndian.Uint32(d[4:]), true
}

// bytes returns d as a wire field, nil when unset.
func (d DestinationID) bytes() []byte {
	if d.IsZero() {
		return nil
	}
	return d[:]
}

// String renders public destinations as "public:<n>" and others as hex.
func (d DestinationID) String() string {
	if id, ok := d.Public(); ok {
		return fmt.Sprintf("public:%d", id)
	}
	return hexutil.Encode(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d DestinationID) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(d[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DestinationID) UnmarshalText(input []byte) error {
	return hexutil.DecodeFixed("DestinationID", string(input), d[:])
}

// IsZero reports whether m is unset.
func (m MessageID) IsZero() bool { return m == MessageID{} }

func (m MessageID) bytes() []byte {
	if m.IsZero() {
		return nil
	}
	return m[:]
}

func (m MessageID) String() string {
	return hexutil.Encode(m[:])
}

// MarshalText implements encoding.TextMarshaler.
func (m MessageID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MessageID) UnmarshalText(input []byte) error {
	return hexutil.DecodeFixed("MessageID", string(input), m[:])
}

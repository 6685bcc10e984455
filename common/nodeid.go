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

package common

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/golemfactory/golem-unlimited/common/hexutil"
)

// NodeIDLength is the expected length of a node identifier.
const NodeIDLength = 20

// NodeID is the identity of a peer in the network. The zero value is used as
// the identity of local and not yet authenticated peers.
type NodeID [NodeIDLength]byte

// NodeIDError is returned when a byte slice or string cannot be converted
// into a NodeID.
type NodeIDError struct {
	Input string
	Msg   string
}

func (e *NodeIDError) Error() string {
	return fmt.Sprintf("invalid node id %q: %s", e.Input, e.Msg)
}

// BytesToNodeID converts b to a NodeID. It fails unless b is exactly
// NodeIDLength bytes long.
func BytesToNodeID(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != NodeIDLength {
		return id, &NodeIDError{Input: hexutil.Encode(b), Msg: fmt.Sprintf("length %d, want %d", len(b), NodeIDLength)}
	}
	copy(id[:], b)
	return id, nil
}

// ParseNodeID is the strict inverse of NodeID.String. The input must be
// exactly 42 characters, start with "0x" and contain only hex digits.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	if len(s) != 2+2*NodeIDLength {
		return id, &NodeIDError{Input: s, Msg: fmt.Sprintf("length %d, want %d", len(s), 2+2*NodeIDLength)}
	}
	if s[0] != '0' || s[1] != 'x' {
		return id, &NodeIDError{Input: s, Msg: "missing 0x prefix"}
	}
	if _, err := hex.Decode(id[:], []byte(s[2:])); err != nil {
		return NodeID{}, &NodeIDError{Input: s, Msg: "invalid hex"}
	}
	return id, nil
}

// MustParseNodeID is like ParseNodeID but panics on invalid input.
// It is intended for constants and tests.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// RandomNodeID returns a node id drawn from crypto/rand.
func RandomNodeID() NodeID {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		panic("can't read random bytes: " + err.Error())
	}
	return id
}

// Bytes returns a copy of the raw id bytes.
func (id NodeID) Bytes() []byte { return append([]byte(nil), id[:]...) }

// IsZero reports whether id is the all-zero sentinel id.
func (id NodeID) IsZero() bool { return id == NodeID{} }

// String returns the 0x-prefixed lowercase hex form of id.
func (id NodeID) String() string {
	return hexutil.Encode(id[:])
}

// TerminalString returns a shortened form of id for log output.
func (id NodeID) TerminalString() string {
	return hex.EncodeToString(id[:4]) + "…" + hex.EncodeToString(id[NodeIDLength-2:])
}

// Format implements fmt.Formatter so that %x prints raw hex and %v/%s the
// prefixed form.
func (id NodeID) Format(s fmt.State, c rune) {
	switch c {
	case 'x':
		fmt.Fprintf(s, "%x", id[:])
	case 'X':
		fmt.Fprintf(s, "%X", id[:])
	default:
		s.Write([]byte(id.String()))
	}
}

// Cmp orders node ids bytewise. It returns -1, 0 or +1.
func (id NodeID) Cmp(other NodeID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(input []byte) error {
	v, err := ParseNodeID(string(input))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

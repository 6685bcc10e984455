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

package wire

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of Hello.
const (
	helloRole       protowire.Number = 1
	helloNodeName   protowire.Number = 2
	helloNodeID     protowire.Number = 3
	helloInstanceID protowire.Number = 4
	helloVersion    protowire.Number = 5
	helloOS         protowire.Number = 10
	helloMaxRAM     protowire.Number = 11
	helloMaxStorage protowire.Number = 12
	helloExecEnvs   protowire.Number = 13
)

// Field numbers of HelloReply.
const (
	replyRole      protowire.Number = 1
	replyNodeName  protowire.Number = 2
	replyNodeID    protowire.Number = 3
	replyVersion   protowire.Number = 4
	replyMaxPingMs protowire.Number = 20
)

// Field numbers of Message.
const (
	msgMessageID     protowire.Number = 1
	msgDestinationID protowire.Number = 2
	msgCorrelationID protowire.Number = 3
	msgStatus        protowire.Number = 4
	msgReplyTo       protowire.Number = 5
	msgTs            protowire.Number = 10
	msgExpires       protowire.Number = 11
	msgPayload       protowire.Number = 20
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendOptVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendVarintField(b, num, v)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *Hello) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendVarintField(b, helloRole, uint64(h.Role))
	b = appendStringField(b, helloNodeName, h.NodeName)
	b = appendBytesField(b, helloNodeID, h.NodeID)
	b = appendBytesField(b, helloInstanceID, h.InstanceID)
	b = appendStringField(b, helloVersion, h.Version)
	b = appendStringField(b, helloOS, h.OS)
	b = appendOptVarint(b, helloMaxRAM, h.MaxRAM)
	b = appendOptVarint(b, helloMaxStorage, h.MaxStorage)
	for _, env := range h.ExecEnvs {
		b = protowire.AppendTag(b, helloExecEnvs, protowire.BytesType)
		b = protowire.AppendString(b, env)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Hello) UnmarshalBinary(data []byte) error {
	*h = Hello{Role: RoleHub}
	err := decodeFields(data, func(d *decoder, num protowire.Number) {
		switch num {
		case helloRole:
			h.Role = Role(d.varint())
		case helloNodeName:
			h.NodeName = d.string()
		case helloNodeID:
			h.NodeID = d.bytes()
		case helloInstanceID:
			h.InstanceID = d.bytes()
		case helloVersion:
			h.Version = d.string()
		case helloOS:
			h.OS = d.string()
		case helloMaxRAM:
			h.MaxRAM = d.varint()
		case helloMaxStorage:
			h.MaxStorage = d.varint()
		case helloExecEnvs:
			h.ExecEnvs = append(h.ExecEnvs, d.string())
		default:
			d.skip()
		}
	})
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	if len(h.NodeID) == 0 {
		return fmt.Errorf("hello: %w: node_id", ErrMissingField)
	}
	if !h.Role.valid() {
		return fmt.Errorf("hello: %w: role %d", ErrMalformed, int32(h.Role))
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *HelloReply) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendVarintField(b, replyRole, uint64(h.Role))
	b = appendStringField(b, replyNodeName, h.NodeName)
	b = appendBytesField(b, replyNodeID, h.NodeID)
	b = appendStringField(b, replyVersion, h.Version)
	if h.MaxPingMs != 0 {
		b = appendVarintField(b, replyMaxPingMs, uint64(int64(h.MaxPingMs)))
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *HelloReply) UnmarshalBinary(data []byte) error {
	*h = HelloReply{Role: RoleHub}
	err := decodeFields(data, func(d *decoder, num protowire.Number) {
		switch num {
		case replyRole:
			h.Role = Role(d.varint())
		case replyNodeName:
			h.NodeName = d.string()
		case replyNodeID:
			h.NodeID = d.bytes()
		case replyVersion:
			h.Version = d.string()
		case replyMaxPingMs:
			h.MaxPingMs = int32(d.varint())
		default:
			d.skip()
		}
	})
	if err != nil {
		return fmt.Errorf("hello reply: %w", err)
	}
	if len(h.NodeID) == 0 {
		return fmt.Errorf("hello reply: %w: node_id", ErrMissingField)
	}
	if !h.Role.valid() {
		return fmt.Errorf("hello reply: %w: role %d", ErrMalformed, int32(h.Role))
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Message) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 64+len(m.Payload))
	b = appendBytesField(b, msgMessageID, m.MessageID)
	b = appendBytesField(b, msgDestinationID, m.DestinationID)
	b = appendBytesField(b, msgCorrelationID, m.CorrelationID)
	b = appendOptVarint(b, msgStatus, uint64(m.Status))
	b = appendBytesField(b, msgReplyTo, m.ReplyTo)
	b = appendOptVarint(b, msgTs, m.Ts)
	b = appendOptVarint(b, msgExpires, m.Expires)
	b = appendStringField(b, msgPayload, m.Payload)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Message) UnmarshalBinary(data []byte) error {
	*m = Message{}
	err := decodeFields(data, func(d *decoder, num protowire.Number) {
		switch num {
		case msgMessageID:
			m.MessageID = d.bytes()
		case msgDestinationID:
			m.DestinationID = d.bytes()
		case msgCorrelationID:
			m.CorrelationID = d.bytes()
		case msgStatus:
			m.Status = Status(d.varint())
		case msgReplyTo:
			m.ReplyTo = d.bytes()
		case msgTs:
			m.Ts = d.varint()
		case msgExpires:
			m.Expires = d.varint()
		case msgPayload:
			m.Payload = d.string()
		default:
			d.skip()
		}
	})
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}
	switch {
	case len(m.MessageID) == 0:
		return fmt.Errorf("message: %w: message_id", ErrMissingField)
	case len(m.DestinationID) == 0:
		return fmt.Errorf("message: %w: destination_id", ErrMissingField)
	case !m.Status.valid():
		return fmt.Errorf("message: %w: status %d", ErrMalformed, int32(m.Status))
	}
	return nil
}

// decoder walks the fields of a single record. Field accessors check the
// wire type of the current field and record the first error; after an error
// all further reads are no-ops.
type decoder struct {
	buf []byte
	num protowire.Number
	typ protowire.Type
	err error
}

// decodeFields calls fn once per field in data. fn must consume the field's
// value through exactly one of the decoder accessors.
func decodeFields(data []byte, fn func(d *decoder, num protowire.Number)) error {
	d := &decoder{buf: data}
	for len(d.buf) > 0 && d.err == nil {
		num, typ, n := protowire.ConsumeTag(d.buf)
		if n < 0 {
			return parseError(n)
		}
		d.buf = d.buf[n:]
		d.num, d.typ = num, typ
		fn(d, num)
	}
	return d.err
}

func (d *decoder) expect(typ protowire.Type) bool {
	if d.err != nil {
		return false
	}
	if d.typ != typ {
		d.err = fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, d.num, d.typ, typ)
		return false
	}
	return true
}

func (d *decoder) varint() uint64 {
	if !d.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		d.err = parseError(n)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) bytes() []byte {
	if !d.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		d.err = parseError(n)
		return nil
	}
	d.buf = d.buf[n:]
	return append([]byte(nil), v...)
}

func (d *decoder) string() string {
	if !d.expect(protowire.BytesType) {
		return ""
	}
	v, n := protowire.ConsumeString(d.buf)
	if n < 0 {
		d.err = parseError(n)
		return ""
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) skip() {
	if d.err != nil {
		return
	}
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.buf)
	if n < 0 {
		d.err = parseError(n)
		return
	}
	d.buf = d.buf[n:]
}

func parseError(n int) error {
	err := protowire.ParseError(n)
	if err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

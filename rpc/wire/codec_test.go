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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	testNodeID = []byte{0x5a, 0xae, 0xb6, 0x05, 0x3f, 0x3e, 0x94, 0xc9, 0xb9, 0xa0, 0x9f, 0x33, 0x66, 0x94, 0x35, 0xe7, 0xef, 0x1b, 0xea, 0xed}
	testMsgID  = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	testDest   = []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 42}
)

type binaryRecord interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

func TestHelloRoundTrip(t *testing.T) {
	tests := []Hello{
		{Role: RoleProvider, NodeID: testNodeID},
		{Role: RoleHub, NodeID: testNodeID, InstanceID: []byte{9, 9}},
		{
			Role:       RoleBoth,
			NodeName:   "worker-1",
			NodeID:     testNodeID,
			InstanceID: []byte("instance"),
			Version:    "0.2.0",
			OS:         "linux",
			MaxRAM:     16 << 30,
			MaxStorage: 1 << 40,
			ExecEnvs:   []string{"hd", "docker"},
		},
	}
	for i, want := range tests {
		enc, err := want.MarshalBinary()
		require.NoError(t, err)
		var have Hello
		require.NoError(t, have.UnmarshalBinary(enc), "test %d", i)
		assert.Equal(t, want, have, "test %d", i)
	}
}

func TestHelloReplyRoundTrip(t *testing.T) {
	tests := []HelloReply{
		{Role: RoleHub, NodeID: testNodeID},
		{Role: RoleHub, NodeID: testNodeID, NodeName: "hub", Version: "0.1", MaxPingMs: 5000},
		{Role: RoleProvider, NodeID: testNodeID, MaxPingMs: -1},
	}
	for i, want := range tests {
		enc, err := want.MarshalBinary()
		require.NoError(t, err)
		var have HelloReply
		require.NoError(t, have.UnmarshalBinary(enc), "test %d", i)
		assert.Equal(t, want, have, "test %d", i)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	tests := []Message{
		{MessageID: testMsgID, DestinationID: testDest, Payload: `{"x":1}`},
		{MessageID: testMsgID, DestinationID: testDest, Status: StatusEvent, Ts: 1700000000},
		{
			MessageID:     testMsgID,
			DestinationID: testDest,
			CorrelationID: []byte{8, 7, 6, 5, 4, 3, 2, 1},
			Status:        StatusReply,
			ReplyTo:       []byte{1, 1, 1, 1, 1, 1, 1, 1},
			Ts:            1700000000,
			Expires:       1700000030,
			Payload:       `"ok"`,
		},
		{MessageID: testMsgID, DestinationID: testDest, Status: StatusNoDestination},
		{MessageID: testMsgID, DestinationID: testDest, Status: StatusBadFormat, Payload: "parse request :: eof"},
	}
	for i, want := range tests {
		enc, err := want.MarshalBinary()
		require.NoError(t, err)
		var have Message
		require.NoError(t, have.UnmarshalBinary(enc), "test %d", i)
		assert.Equal(t, want, have, "test %d", i)
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	msg := Message{MessageID: testMsgID, DestinationID: testDest, Payload: "{}"}
	enc, _ := msg.MarshalBinary()
	enc = protowire.AppendTag(enc, 99, protowire.BytesType)
	enc = protowire.AppendString(enc, "future")
	enc = protowire.AppendTag(enc, 100, protowire.VarintType)
	enc = protowire.AppendVarint(enc, 12345)
	enc = protowire.AppendTag(enc, 101, protowire.Fixed64Type)
	enc = protowire.AppendFixed64(enc, 1)

	var have Message
	require.NoError(t, have.UnmarshalBinary(enc))
	assert.Equal(t, msg, have)
}

// Cutting a record inside a field must always fail. Cutting at a field
// boundary may produce a shorter valid record, but must never panic.
func TestTruncatedRecords(t *testing.T) {
	hello := &Hello{Role: RoleBoth, NodeName: "n", NodeID: testNodeID, InstanceID: []byte{1}, Version: "v", OS: "os", MaxRAM: 1 << 33, ExecEnvs: []string{"hd"}}
	reply := &HelloReply{Role: RoleHub, NodeID: testNodeID, Version: "0.1", MaxPingMs: 1000}
	msg := &Message{MessageID: testMsgID, DestinationID: testDest, ReplyTo: testDest, Ts: 1 << 40, Payload: `{"x":1}`}

	tests := []struct {
		rec   binaryRecord
		fresh func() binaryRecord
	}{
		{hello, func() binaryRecord { return new(Hello) }},
		{reply, func() binaryRecord { return new(HelloReply) }},
		{msg, func() binaryRecord { return new(Message) }},
	}
	for _, test := range tests {
		enc, err := test.rec.MarshalBinary()
		require.NoError(t, err)
		boundaries := fieldBoundaries(t, enc)
		for cut := 0; cut < len(enc); cut++ {
			err := test.fresh().UnmarshalBinary(enc[:cut])
			if !boundaries[cut] {
				require.Error(t, err, "%T cut at %d", test.rec, cut)
			}
		}
	}
}

func TestMalformedRecords(t *testing.T) {
	hello, _ := (&Hello{Role: RoleProvider, NodeID: testNodeID}).MarshalBinary()
	msg, _ := (&Message{MessageID: testMsgID, DestinationID: testDest}).MarshalBinary()

	// A Hello is not a valid Message and vice versa.
	assert.ErrorIs(t, new(Message).UnmarshalBinary(hello), ErrMalformed)
	assert.ErrorIs(t, new(Hello).UnmarshalBinary(msg), ErrMalformed)

	// Required fields.
	noDest, _ := (&Message{MessageID: testMsgID}).MarshalBinary()
	assert.ErrorIs(t, new(Message).UnmarshalBinary(noDest), ErrMissingField)
	noID, _ := (&Hello{Role: RoleHub}).MarshalBinary()
	assert.ErrorIs(t, new(Hello).UnmarshalBinary(noID), ErrMissingField)
	assert.ErrorIs(t, new(Message).UnmarshalBinary(nil), ErrMissingField)

	// Out of range enums.
	badStatus, _ := (&Message{MessageID: testMsgID, DestinationID: testDest, Status: 7}).MarshalBinary()
	assert.ErrorIs(t, new(Message).UnmarshalBinary(badStatus), ErrMalformed)
	badRole, _ := (&Hello{Role: 9, NodeID: testNodeID}).MarshalBinary()
	assert.ErrorIs(t, new(Hello).UnmarshalBinary(badRole), ErrMalformed)

	// Truncated varint and garbage tags.
	assert.True(t, errors.Is(new(Message).UnmarshalBinary([]byte{0x80}), ErrTruncated))
	assert.Error(t, new(Message).UnmarshalBinary([]byte{0x00, 0x01}))
	assert.Error(t, new(Message).UnmarshalBinary([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
}

func TestRoleText(t *testing.T) {
	for _, r := range []Role{RoleHub, RoleProvider, RoleBoth} {
		text, err := r.MarshalText()
		require.NoError(t, err)
		var dec Role
		require.NoError(t, dec.UnmarshalText(text))
		assert.Equal(t, r, dec)
	}
	var r Role
	assert.NoError(t, r.UnmarshalText([]byte("HUB")))
	assert.Equal(t, RoleHub, r)
	assert.Error(t, r.UnmarshalText([]byte("miner")))
	_, err := Role(0).MarshalText()
	assert.Error(t, err)
}

func TestStatusIsReply(t *testing.T) {
	assert.False(t, StatusRequest.IsReply())
	assert.False(t, StatusEvent.IsReply())
	assert.True(t, StatusReply.IsReply())
	assert.True(t, StatusNoDestination.IsReply())
	assert.True(t, StatusBadFormat.IsReply())
}

// fieldBoundaries returns the offsets in enc at which a field starts.
func fieldBoundaries(t *testing.T, enc []byte) map[int]bool {
	t.Helper()
	bounds := map[int]bool{0: true}
	for off := 0; off < len(enc); {
		num, typ, n := protowire.ConsumeTag(enc[off:])
		require.GreaterOrEqual(t, n, 0)
		m := protowire.ConsumeFieldValue(num, typ, enc[off+n:])
		require.GreaterOrEqual(t, m, 0)
		off += n + m
		bounds[off] = true
	}
	return bounds
}

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
	"fmt"
	"runtime"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ProtocolVersion is advertised in Hello and HelloReply.
const ProtocolVersion = "0.1"

// localNode describes this node in handshakes.
type localNode struct {
	id         common.NodeID
	name       string
	role       wire.Role
	instanceID uuid.UUID
	maxPing    time.Duration
	maxRAM     uint64
	maxStorage uint64
}

func (n *localNode) hello() *wire.Hello {
	return &wire.Hello{
		Role:       n.role,
		NodeName:   n.name,
		NodeID:     n.id.Bytes(),
		InstanceID: n.instanceID[:],
		Version:    ProtocolVersion,
		OS:         runtime.GOOS,
		MaxRAM:     n.maxRAM,
		MaxStorage: n.maxStorage,
	}
}

func (n *localNode) helloReply() *wire.HelloReply {
	return &wire.HelloReply{
		Role:      n.role,
		NodeName:  n.name,
		NodeID:    n.id.Bytes(),
		Version:   ProtocolVersion,
		MaxPingMs: int32(n.maxPing / time.Millisecond),
	}
}

// handshake exchanges Hello and HelloReply on a fresh connection. The
// dialing side sends Hello and waits for the reply, the accepting side does
// the reverse. Any frame other than the expected one is a protocol breach.
func (n *localNode) handshake(conn frameConn, inbound bool, timeout time.Duration) (PeerInfo, error) {
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	if inbound {
		return n.accept(conn, timeout)
	}
	return n.initiate(conn, timeout)
}

func (n *localNode) accept(conn frameConn, timeout time.Duration) (info PeerInfo, err error) {
	data, err := readBinary(conn)
	if err != nil {
		return info, err
	}
	var h wire.Hello
	if err := h.UnmarshalBinary(data); err != nil {
		return info, newProtoError(HandshakeFailed, "bad hello: %v", err)
	}
	if info.NodeID, err = n.remoteID(h.NodeID); err != nil {
		return info, err
	}
	info.NodeName, info.Role, info.Version, info.OS = h.NodeName, h.Role, h.Version, h.OS
	info.MaxRAM, info.MaxStorage = h.MaxRAM, h.MaxStorage
	if id, err := uuid.FromBytes(h.InstanceID); err == nil {
		info.InstanceID = id.String()
	}
	reply, err := n.helloReply().MarshalBinary()
	if err != nil {
		return info, err
	}
	return info, writeBinary(conn, reply, timeout)
}

func (n *localNode) initiate(conn frameConn, timeout time.Duration) (info PeerInfo, err error) {
	hello, err := n.hello().MarshalBinary()
	if err != nil {
		return info, err
	}
	if err := writeBinary(conn, hello, timeout); err != nil {
		return info, err
	}
	data, err := readBinary(conn)
	if err != nil {
		return info, err
	}
	var h wire.HelloReply
	if err := h.UnmarshalBinary(data); err != nil {
		return info, newProtoError(HandshakeFailed, "bad hello reply: %v", err)
	}
	if info.NodeID, err = n.remoteID(h.NodeID); err != nil {
		return info, err
	}
	info.NodeName, info.Role, info.Version = h.NodeName, h.Role, h.Version
	return info, nil
}

func (n *localNode) remoteID(b []byte) (common.NodeID, error) {
	id, err := common.BytesToNodeID(b)
	if err != nil {
		return id, newProtoError(HandshakeFailed, "node id: %v", err)
	}
	if id == n.id {
		return id, newProtoError(HandshakeFailed, "%w", errSelfConnect)
	}
	return id, nil
}

func readBinary(conn frameConn) ([]byte, error) {
	typ, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, newProtoError(InvalidFrame, "unexpected %s frame", frameType(typ))
	}
	return data, nil
}

func writeBinary(conn frameConn, data []byte, timeout time.Duration) error {
	conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func frameType(typ int) string {
	switch typ {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("type-%d", typ)
	}
}

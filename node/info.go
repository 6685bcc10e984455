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

package node

import (
	"context"
	"encoding/json"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/common/hexutil"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
)

// InfoDestination is the public destination answering NodeInfo requests.
const InfoDestination = 1

// NodeInfo describes a node to its peers.
type NodeInfo struct {
	NodeID    common.NodeID `json:"nodeId"`
	// PublicKey is the compressed secp256k1 key NodeID is derived from.
	PublicKey hexutil.Bytes `json:"publicKey"`
	Name      string        `json:"name"`
	Role      wire.Role     `json:"role"`
	Version   string        `json:"version"`
	Peers     int           `json:"peers"`
}

// Info returns the description of the local node.
func (n *Node) Info() NodeInfo {
	return NodeInfo{
		NodeID:    n.Self(),
		PublicKey: n.key.PubKey().SerializeCompressed(),
		Name:      n.config.Name,
		Role:      n.config.Role,
		Version:   p2p.ProtocolVersion,
		Peers:     n.peers.Len(),
	}
}

func (n *Node) serveInfo(ctx context.Context, sender common.NodeID, _ json.RawMessage) (NodeInfo, error) {
	return n.Info(), nil
}

// RemoteInfo asks a connected node for its NodeInfo.
func (n *Node) RemoteInfo(ctx context.Context, node common.NodeID) (NodeInfo, error) {
	return rpc.Call[json.RawMessage, NodeInfo](ctx, n.replies, node, rpc.PublicDestination(InfoDestination), json.RawMessage("null"))
}

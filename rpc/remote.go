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
	"context"
	"encoding/json"

	"github.com/golemfactory/golem-unlimited/common"
)

// RemoteEndpoint is a typed handle to a destination on a remote node.
type RemoteEndpoint[Req, Resp any] struct {
	rr   *ReplyRouter
	node common.NodeID
	dest DestinationID
}

// NewEndpoint returns a handle for calling dest on node with requests of type
// Req answered by Resp.
func NewEndpoint[Req, Resp any](rr *ReplyRouter, node common.NodeID, dest DestinationID) *RemoteEndpoint[Req, Resp] {
	return &RemoteEndpoint[Req, Resp]{rr: rr, node: node, dest: dest}
}

// Node returns the node the endpoint lives on.
func (e *RemoteEndpoint[Req, Resp]) Node() common.NodeID { return e.node }

// Send calls the endpoint and waits for the reply.
func (e *RemoteEndpoint[Req, Resp]) Send(ctx context.Context, req Req) (Resp, error) {
	return Call[Req, Resp](ctx, e.rr, e.node, e.dest, req)
}

// Notify sends req to the endpoint as an event, without waiting for anything.
func (e *RemoteEndpoint[Req, Resp]) Notify(ctx context.Context, req Req) error {
	return Notify(ctx, e.rr.Router(), e.node, e.dest, req)
}

// Notify encodes v and emits it as an event to dest on node.
func Notify(ctx context.Context, r *Router, node common.NodeID, dest DestinationID, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return &BodyError{Gen: true, Err: err}
	}
	_, err = r.EmitEvent(ctx, EmitMessage[string]{
		DestNode:    node,
		Destination: dest,
		Body:        string(body),
	})
	return err
}

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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
)

// Endpoint receives requests and events routed to a local destination.
// Handle is called on the goroutine that delivered the message, which is the
// reading goroutine of a connection for remote traffic. It should hand the
// message off rather than serve it inline.
type Endpoint interface {
	Handle(msg RouteMessage[string])
}

// EndpointFunc adapts a function to the Endpoint interface.
type EndpointFunc func(msg RouteMessage[string])

func (f EndpointFunc) Handle(msg RouteMessage[string]) { f(msg) }

// ReplyEndpoint receives replies routed to a local reply destination.
type ReplyEndpoint interface {
	HandleReply(msg RouteMessage[Result])
}

// ReplyEndpointFunc adapts a function to the ReplyEndpoint interface.
type ReplyEndpointFunc func(msg RouteMessage[Result])

func (f ReplyEndpointFunc) HandleReply(msg RouteMessage[Result]) { f(msg) }

// Transport is the outbound handle of a connection to a remote node.
// Send returns an error wrapping ErrMailBox once the connection is gone
// for good; the Router evicts the transport when it sees one.
type Transport interface {
	Send(ctx context.Context, env *Envelope) error
}

// routes is the state owned by the router loop.
type routes struct {
	destinations map[DestinationID]Endpoint
	replies      map[DestinationID]ReplyEndpoint
	remotes      map[common.NodeID]Transport
}

type routeOp func(*routes)

// Router is the process-wide registry of local destinations and remote
// transports. All registry state is owned by a single goroutine and changed
// through operations submitted to it. Handlers and transports are invoked on
// the caller's goroutine, after the lookup.
type Router struct {
	self common.NodeID
	log  log.Logger

	ops    chan routeOp
	opDone chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRouter creates a router for the node identified by self and starts its
// loop. Messages addressed to self or to the zero NodeID are delivered
// locally.
func NewRouter(self common.NodeID) *Router {
	r := &Router{
		self:   self,
		log:    log.New("node", self),
		ops:    make(chan routeOp),
		opDone: make(chan struct{}),
		quit:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Router) loop() {
	defer r.wg.Done()

	s := &routes{
		destinations: make(map[DestinationID]Endpoint),
		replies:      make(map[DestinationID]ReplyEndpoint),
		remotes:      make(map[common.NodeID]Transport),
	}
	for {
		select {
		case op := <-r.ops:
			op(s)
			r.opDone <- struct{}{}
		case <-r.quit:
			return
		}
	}
}

// do runs op on the router loop and waits for it to finish.
func (r *Router) do(op routeOp) error {
	select {
	case r.ops <- op:
		<-r.opDone
		return nil
	case <-r.quit:
		return ErrRouterClosed
	}
}

// Close stops the router loop. Later operations fail with ErrRouterClosed.
func (r *Router) Close() {
	r.once.Do(func() { close(r.quit) })
	r.wg.Wait()
}

// Self returns the id of the local node.
func (r *Router) Self() common.NodeID {
	return r.self
}

func (r *Router) isLocal(node common.NodeID) bool {
	return node == r.self || node.IsZero()
}

// BindDestination registers h as the handler for id, replacing any previous
// handler.
func (r *Router) BindDestination(id DestinationID, h Endpoint) {
	r.do(func(s *routes) {
		if _, ok := s.destinations[id]; ok {
			r.log.Warn("Destination rebound", "dest", id)
		}
		s.destinations[id] = h
	})
}

// UnbindDestination removes the handler for id.
func (r *Router) UnbindDestination(id DestinationID) {
	r.do(func(s *routes) { delete(s.destinations, id) })
}

// BindReplyDestination registers h as the reply handler for id, replacing
// any previous handler. Reply destinations live in their own table.
func (r *Router) BindReplyDestination(id DestinationID, h ReplyEndpoint) {
	r.do(func(s *routes) {
		if _, ok := s.replies[id]; ok {
			r.log.Warn("Reply destination rebound", "dest", id)
		}
		s.replies[id] = h
	})
}

// UnbindReplyDestination removes the reply handler for id.
func (r *Router) UnbindReplyDestination(id DestinationID) {
	r.do(func(s *routes) { delete(s.replies, id) })
}

// AddEndpoint registers t as the transport for node, replacing any previous
// one.
func (r *Router) AddEndpoint(node common.NodeID, t Transport) {
	r.do(func(s *routes) {
		s.remotes[node] = t
		r.log.Debug("Endpoint added", "peer", node)
	})
}

// DelEndpoint removes the transport for node. Removing an absent entry is
// a no-op.
func (r *Router) DelEndpoint(node common.NodeID) {
	r.do(func(s *routes) { delete(s.remotes, node) })
}

// ReleaseEndpoint removes the transport for node only if it is still t.
// Connections call it on shutdown so that they never remove a newer
// connection to the same node.
func (r *Router) ReleaseEndpoint(node common.NodeID, t Transport) bool {
	var removed bool
	r.do(func(s *routes) {
		if cur, ok := s.remotes[node]; ok && cur == t {
			delete(s.remotes, node)
			removed = true
		}
	})
	return removed
}

// Endpoints returns the nodes with a registered transport, in id order.
func (r *Router) Endpoints() []common.NodeID {
	var nodes []common.NodeID
	r.do(func(s *routes) {
		for id := range s.remotes {
			nodes = append(nodes, id)
		}
	})
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Cmp(nodes[j]) < 0 })
	return nodes
}

// Destinations returns the bound request destinations, in byte order.
func (r *Router) Destinations() []DestinationID {
	var ids []DestinationID
	r.do(func(s *routes) {
		for id := range s.destinations {
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

func (r *Router) lookup(id DestinationID) (h Endpoint, err error) {
	err = r.do(func(s *routes) { h = s.destinations[id] })
	return h, err
}

func (r *Router) lookupReply(id DestinationID) (h ReplyEndpoint, err error) {
	err = r.do(func(s *routes) { h = s.replies[id] })
	return h, err
}

func (r *Router) remote(node common.NodeID) (t Transport, err error) {
	err = r.do(func(s *routes) { t = s.remotes[node] })
	return t, err
}

// Route delivers msg to the handler bound to its destination. When nothing is
// bound, a NoDestination reply is sent to msg.ReplyTo, or the message is
// dropped if it has none.
func (r *Router) Route(ctx context.Context, msg RouteMessage[string]) {
	h, err := r.lookup(msg.Destination)
	if err != nil {
		r.log.Debug("Dropping message on closed router", "dest", msg.Destination)
		return
	}
	if h != nil {
		h.Handle(msg)
		return
	}
	routeMissCounter.Inc(1)
	reply, ok := msg.Reply(Failed(NoDestination, ""))
	if !ok {
		r.log.Error("No destination for message", "dest", msg.Destination, "sender", msg.Sender, "id", msg.MsgID)
		return
	}
	r.log.Debug("No destination, replying", "dest", msg.Destination, "sender", msg.Sender, "replyto", msg.ReplyTo)
	if _, err := r.EmitReply(ctx, reply); err != nil {
		r.log.Warn("Failed to send no-destination reply", "sender", msg.Sender, "err", err)
	}
}

// RouteReply delivers msg to the handler bound to its reply destination.
// Replies nobody waits for are dropped.
func (r *Router) RouteReply(msg RouteMessage[Result]) {
	h, err := r.lookupReply(msg.Destination)
	if err != nil {
		return
	}
	if h == nil {
		replyMissCounter.Inc(1)
		r.log.Warn("No reply destination", "dest", msg.Destination, "sender", msg.Sender, "correlation", msg.CorrelationID)
		return
	}
	h.HandleReply(msg)
}

// Deliver routes an envelope received from sender. Transports call it for
// every inbound message; the status selects the request or reply table.
func (r *Router) Deliver(ctx context.Context, sender common.NodeID, env *Envelope) {
	if env.Status.IsReply() {
		r.RouteReply(routeMessage(sender, env, env.Result()))
	} else {
		r.Route(ctx, routeMessage(sender, env, env.Payload))
	}
}

// Emit sends a request. The message is delivered locally when DestNode is
// the local node, otherwise it is handed to the node's transport. Emit never
// queues or retries: without a transport it fails with ErrNotConnected.
func (r *Router) Emit(ctx context.Context, m EmitMessage[string]) (MessageID, error) {
	if m.Ts == 0 {
		m.Ts = uint64(time.Now().Unix())
	}
	return r.emit(ctx, &m.MsgID, m.DestNode, func() *Envelope {
		return envelope(&m, wire.StatusRequest, m.Body)
	})
}

// EmitEvent sends a fire-and-forget event. Events carry no reply
// destination.
func (r *Router) EmitEvent(ctx context.Context, m EmitMessage[string]) (MessageID, error) {
	if m.Ts == 0 {
		m.Ts = uint64(time.Now().Unix())
	}
	m.ReplyTo = DestinationID{}
	return r.emit(ctx, &m.MsgID, m.DestNode, func() *Envelope {
		return envelope(&m, wire.StatusEvent, m.Body)
	})
}

// EmitReply sends a reply built by RouteMessage.Reply.
func (r *Router) EmitReply(ctx context.Context, m EmitMessage[Result]) (MessageID, error) {
	return r.emit(ctx, &m.MsgID, m.DestNode, func() *Envelope {
		return replyEnvelope(&m)
	})
}

func (r *Router) emit(ctx context.Context, id *MessageID, node common.NodeID, build func() *Envelope) (MessageID, error) {
	if id.IsZero() {
		*id = NewMessageID()
	}
	env := build()
	if r.isLocal(node) {
		r.Deliver(ctx, r.self, env)
		return *id, nil
	}
	t, err := r.remote(node)
	if err != nil {
		return *id, err
	}
	if t == nil {
		notConnectedCounter.Inc(1)
		return *id, fmt.Errorf("%w: %v", ErrNotConnected, node)
	}
	if err := t.Send(ctx, env); err != nil {
		if errors.Is(err, ErrMailBox) {
			if r.ReleaseEndpoint(node, t) {
				evictionCounter.Inc(1)
				r.log.Debug("Evicted closed endpoint", "peer", node, "err", err)
			}
			return *id, fmt.Errorf("%w: %v", ErrNotConnected, node)
		}
		return *id, err
	}
	return *id, nil
}

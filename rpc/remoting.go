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
	"fmt"
	"sync"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/log"
)

// remotingQueueSize bounds the requests waiting for a service. Deliveries
// block when the queue is full.
const remotingQueueSize = 64

// rejectTimeout bounds sending the NoDestination reply for a request that
// arrives at a stopped service.
const rejectTimeout = 5 * time.Second

type remoteRequest struct {
	msg   RouteMessage[string]
	serve func(context.Context, *RouteMessage[string]) Result
}

// Handler serves requests of type Req for a bound destination. sender is the
// node the request came from.
type Handler[Req, Resp any] func(ctx context.Context, sender common.NodeID, req Req) (Resp, error)

// RemotingContext exposes a local service under public destinations. All
// requests bound through one context are served one at a time, in arrival
// order, on the context's own goroutine.
type RemotingContext struct {
	router *Router
	log    log.Logger
	inbox  chan remoteRequest

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopMu  sync.RWMutex
	stopped bool

	mu    sync.Mutex
	bound []DestinationID
}

// NewRemotingContext creates a serving context for the named service.
func NewRemotingContext(r *Router, name string) *RemotingContext {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &RemotingContext{
		router: r,
		log:    log.New("service", name),
		inbox:  make(chan remoteRequest, remotingQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	rc.wg.Add(1)
	go rc.loop()
	return rc
}

func (rc *RemotingContext) loop() {
	defer rc.wg.Done()
	for rc.ctx.Err() == nil {
		select {
		case req := <-rc.inbox:
			rc.serve(&req.msg, req.serve)
		case <-rc.ctx.Done():
			return
		}
	}
}

// Close unbinds every destination of the context and stops serving.
// Requests still queued, and requests arriving afterwards, are answered
// with NoDestination.
func (rc *RemotingContext) Close() {
	rc.mu.Lock()
	bound := rc.bound
	rc.bound = nil
	rc.mu.Unlock()

	for _, dest := range bound {
		rc.router.UnbindDestination(dest)
	}
	rc.cancel()
	rc.wg.Wait()

	// Senders holding the read lock have either queued their request or
	// rejected it themselves once this returns.
	rc.stopMu.Lock()
	rc.stopped = true
	rc.stopMu.Unlock()
	for {
		select {
		case req := <-rc.inbox:
			rc.reject(&req.msg)
		default:
			return
		}
	}
}

// Bind serves requests sent to the public destination id with fn. Requests
// that do not decode as Req, and handler errors, are answered with a
// BadFormat reply. Results of messages without a reply destination are
// dropped.
func Bind[Req, Resp any](rc *RemotingContext, id uint32, fn Handler[Req, Resp]) DestinationID {
	dest := PublicDestination(id)
	rc.bind(dest, func(ctx context.Context, msg *RouteMessage[string]) Result {
		var req Req
		if err := json.Unmarshal([]byte(msg.Body), &req); err != nil {
			return Failed(BadFormat, err.Error())
		}
		resp, err := fn(ctx, msg.Sender, req)
		if err != nil {
			return Failed(BadFormat, err.Error())
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return Failed(BadFormat, fmt.Sprintf("encode reply: %v", err))
		}
		return Ok(string(body))
	})
	return dest
}

func (rc *RemotingContext) bind(dest DestinationID, serve func(context.Context, *RouteMessage[string]) Result) {
	rc.mu.Lock()
	rc.bound = append(rc.bound, dest)
	rc.mu.Unlock()

	rc.router.BindDestination(dest, EndpointFunc(func(msg RouteMessage[string]) {
		rc.stopMu.RLock()
		defer rc.stopMu.RUnlock()
		if rc.stopped {
			rc.reject(&msg)
			return
		}
		select {
		case rc.inbox <- remoteRequest{msg, serve}:
		case <-rc.ctx.Done():
			rc.reject(&msg)
		}
	}))
	rc.log.Debug("Bound destination", "dest", dest)
}

func (rc *RemotingContext) serve(msg *RouteMessage[string], serve func(context.Context, *RouteMessage[string]) Result) {
	res := serve(rc.ctx, msg)
	if res.Err != nil {
		remotingErrorCounter.Inc(1)
		rc.log.Debug("Request failed", "dest", msg.Destination, "sender", msg.Sender, "err", res.Err)
	}
	reply, ok := msg.Reply(res)
	if !ok {
		rc.log.Trace("No reply destination, dropping result", "dest", msg.Destination, "id", msg.MsgID)
		return
	}
	if _, err := rc.router.EmitReply(rc.ctx, reply); err != nil {
		rc.log.Warn("Failed to send reply", "peer", msg.Sender, "dest", msg.Destination, "err", err)
	}
}

// reject answers a request the stopped service will never serve.
func (rc *RemotingContext) reject(msg *RouteMessage[string]) {
	reply, ok := msg.Reply(Failed(NoDestination, "service stopped"))
	if !ok {
		rc.log.Debug("Dropping event for stopped service", "dest", msg.Destination, "sender", msg.Sender)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), rejectTimeout)
	defer cancel()
	if _, err := rc.router.EmitReply(ctx, reply); err != nil {
		rc.log.Debug("Failed to reject request", "peer", msg.Sender, "dest", msg.Destination, "err", err)
	}
}

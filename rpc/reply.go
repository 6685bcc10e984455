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

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/log"
	lru "github.com/hashicorp/golang-lru"
)

// canceledCacheSize bounds the memory of abandoned calls used to tell late
// replies from unknown ones.
const canceledCacheSize = 1024

// pending maps correlation keys to the one-shot result slots of calls in
// flight.
type pending map[MessageID]chan Result

type pendingOp func(pending)

// ReplyRouter correlates replies with outstanding calls. It binds one
// random reply destination on the Router for its whole lifetime and owns the
// pending call table on its own goroutine.
type ReplyRouter struct {
	router   *Router
	replyTo  DestinationID
	canceled *lru.Cache
	log      log.Logger

	ops    chan pendingOp
	opDone chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewReplyRouter creates a reply router on top of r.
func NewReplyRouter(r *Router) *ReplyRouter {
	canceled, _ := lru.New(canceledCacheSize)
	rr := &ReplyRouter{
		router:   r,
		replyTo:  GenDestinationID(),
		canceled: canceled,
		ops:      make(chan pendingOp),
		opDone:   make(chan struct{}),
		quit:     make(chan struct{}),
	}
	rr.log = log.New("replyto", rr.replyTo)
	rr.wg.Add(1)
	go rr.loop()
	r.BindReplyDestination(rr.replyTo, rr)
	return rr
}

func (rr *ReplyRouter) loop() {
	defer rr.wg.Done()

	calls := make(pending)
	for {
		select {
		case op := <-rr.ops:
			op(calls)
			rr.opDone <- struct{}{}
		case <-rr.quit:
			for key, slot := range calls {
				close(slot)
				delete(calls, key)
			}
			return
		}
	}
}

func (rr *ReplyRouter) do(op pendingOp) error {
	select {
	case rr.ops <- op:
		<-rr.opDone
		return nil
	case <-rr.quit:
		return ErrRouterClosed
	}
}

// Close unbinds the reply destination and fails all calls in flight with
// ErrCanceled.
func (rr *ReplyRouter) Close() {
	rr.router.UnbindReplyDestination(rr.replyTo)
	rr.once.Do(func() { close(rr.quit) })
	rr.wg.Wait()
}

// Router returns the router replies are received from.
func (rr *ReplyRouter) Router() *Router {
	return rr.router
}

// ReplyTo returns the reply destination of rr.
func (rr *ReplyRouter) ReplyTo() DestinationID {
	return rr.replyTo
}

// HandleReply resolves the call the reply is correlated with. Replies for
// unknown or abandoned calls are dropped.
func (rr *ReplyRouter) HandleReply(msg RouteMessage[Result]) {
	key := msg.ReplyKey()
	rr.do(func(calls pending) {
		slot, ok := calls[key]
		if ok {
			delete(calls, key)
			slot <- msg.Body
			return
		}
		if rr.canceled.Contains(key) {
			lateReplyCounter.Inc(1)
			rr.log.Debug("Dropping late reply", "correlation", key, "sender", msg.Sender)
			return
		}
		replyMissCounter.Inc(1)
		rr.log.Warn("Dropping unexpected reply", "correlation", key, "sender", msg.Sender)
	})
}

// Pending returns the number of calls in flight.
func (rr *ReplyRouter) Pending() int {
	var n int
	rr.do(func(calls pending) { n = len(calls) })
	return n
}

func (rr *ReplyRouter) register(key MessageID) (chan Result, error) {
	slot := make(chan Result, 1)
	err := rr.do(func(calls pending) {
		if _, ok := calls[key]; ok {
			// Keys are random; a clash means a caller reused an id.
			rr.log.Error("Duplicate correlation key", "correlation", key)
		}
		calls[key] = slot
	})
	return slot, err
}

func (rr *ReplyRouter) remove(key MessageID, canceled bool) {
	rr.do(func(calls pending) {
		delete(calls, key)
		if canceled {
			rr.canceled.Add(key, struct{}{})
		}
	})
}

// call emits m and waits for the reply correlated by key. The pending slot is
// registered before the message is emitted so that a reply produced by local
// dispatch cannot overtake it.
func (rr *ReplyRouter) call(ctx context.Context, m EmitMessage[string], key MessageID) (Result, error) {
	slot, err := rr.register(key)
	if err != nil {
		return Result{}, err
	}
	m.ReplyTo = rr.replyTo
	if _, err := rr.router.Emit(ctx, m); err != nil {
		rr.remove(key, false)
		return Result{}, err
	}
	select {
	case res, ok := <-slot:
		if !ok {
			return Result{}, ErrCanceled
		}
		return res, nil
	case <-ctx.Done():
		rr.remove(key, true)
		// The reply may have been delivered while the call was abandoned.
		select {
		case res, ok := <-slot:
			if ok {
				return res, nil
			}
		default:
		}
		canceledCallCounter.Inc(1)
		return Result{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}

// CallUntyped sends an already encoded JSON request to dest on node and
// returns the raw JSON reply. Each call uses its own generated correlation
// id, so concurrent calls to the same destination never share a slot.
func (rr *ReplyRouter) CallUntyped(ctx context.Context, node common.NodeID, dest DestinationID, body json.RawMessage) (json.RawMessage, error) {
	key := NewMessageID()
	res, err := rr.call(ctx, EmitMessage[string]{
		DestNode:      node,
		Destination:   dest,
		CorrelationID: key,
		Body:          string(body),
	}, key)
	if err != nil {
		return nil, err
	}
	if err := resultError(res); err != nil {
		return nil, err
	}
	if !json.Valid([]byte(res.Payload)) {
		return nil, &BodyError{Body: res.Payload, Err: fmt.Errorf("invalid JSON reply")}
	}
	return json.RawMessage(res.Payload), nil
}

// Call sends req to dest on node and decodes the reply into Resp. The
// message id of the request is the correlation key.
func Call[Req, Resp any](ctx context.Context, rr *ReplyRouter, node common.NodeID, dest DestinationID, req Req) (Resp, error) {
	var resp Resp
	body, err := json.Marshal(req)
	if err != nil {
		return resp, &BodyError{Gen: true, Err: err}
	}
	id := NewMessageID()
	res, err := rr.call(ctx, EmitMessage[string]{
		MsgID:       id,
		DestNode:    node,
		Destination: dest,
		Body:        string(body),
	}, id)
	if err != nil {
		return resp, err
	}
	if err := resultError(res); err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(res.Payload), &resp); err != nil {
		return resp, &BodyError{Body: res.Payload, Err: err}
	}
	return resp, nil
}

// resultError maps the error side of a reply to the caller's taxonomy.
func resultError(res Result) error {
	if res.Err == nil {
		return nil
	}
	if res.Err.Kind == NoDestination {
		return res.Err
	}
	return &BodyError{Body: res.Err.Msg}
}

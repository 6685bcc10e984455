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
	"fmt"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
)

// Result is the body of a reply: a JSON payload on success, or the transport
// error that prevented the request from being served.
type Result struct {
	Payload string
	Err     *TransportError
}

// Ok wraps a JSON payload as a successful result.
func Ok(payload string) Result { return Result{Payload: payload} }

// Failed wraps a transport error as a result.
func Failed(kind TransportErrorKind, msg string) Result {
	return Result{Err: &TransportError{Kind: kind, Msg: msg}}
}

// RouteMessage is a message delivered to a local endpoint. Zero ReplyTo means
// the sender does not expect a reply, zero CorrelationID means the message id
// itself correlates the reply. Expires is zero when unset.
type RouteMessage[B any] struct {
	MsgID         MessageID
	Sender        common.NodeID
	Destination   DestinationID
	ReplyTo       DestinationID
	CorrelationID MessageID
	Ts            uint64
	Expires       uint64
	Body          B
}

// ReplyKey returns the id a reply to m is correlated by.
func (m *RouteMessage[B]) ReplyKey() MessageID {
	if !m.CorrelationID.IsZero() {
		return m.CorrelationID
	}
	return m.MsgID
}

// Reply builds the reply to m carrying body. It returns false when m carries
// no reply destination.
func (m *RouteMessage[B]) Reply(body Result) (EmitMessage[Result], bool) {
	if m.ReplyTo.IsZero() {
		return EmitMessage[Result]{}, false
	}
	return EmitMessage[Result]{
		DestNode:      m.Sender,
		Destination:   m.ReplyTo,
		CorrelationID: m.ReplyKey(),
		Expires:       m.Expires,
		Body:          body,
	}, true
}

// EmitMessage is a message handed to the Router for delivery. A zero MsgID is
// replaced by a fresh random id.
type EmitMessage[B any] struct {
	MsgID         MessageID
	DestNode      common.NodeID
	Destination   DestinationID
	CorrelationID MessageID
	ReplyTo       DestinationID
	Ts            uint64
	Expires       uint64
	Body          B
}

// Envelope is the transport form of a message: ids, status and the raw
// payload. Transports move envelopes between routers.
type Envelope struct {
	MsgID         MessageID
	Destination   DestinationID
	CorrelationID MessageID
	ReplyTo       DestinationID
	Ts            uint64
	Expires       uint64
	Status        wire.Status
	Payload       string
}

func envelope[B any](m *EmitMessage[B], status wire.Status, payload string) *Envelope {
	return &Envelope{
		MsgID:         m.MsgID,
		Destination:   m.Destination,
		CorrelationID: m.CorrelationID,
		ReplyTo:       m.ReplyTo,
		Ts:            m.Ts,
		Expires:       m.Expires,
		Status:        status,
		Payload:       payload,
	}
}

// replyEnvelope encodes a reply result into status and payload.
func replyEnvelope(m *EmitMessage[Result]) *Envelope {
	switch {
	case m.Body.Err == nil:
		return envelope(m, wire.StatusReply, m.Body.Payload)
	case m.Body.Err.Kind == NoDestination:
		return envelope(m, wire.StatusNoDestination, m.Body.Err.Msg)
	default:
		return envelope(m, wire.StatusBadFormat, m.Body.Err.Msg)
	}
}

// Result decodes the body of a reply envelope.
func (e *Envelope) Result() Result {
	switch e.Status {
	case wire.StatusNoDestination:
		return Failed(NoDestination, e.Payload)
	case wire.StatusBadFormat:
		return Failed(BadFormat, e.Payload)
	default:
		return Ok(e.Payload)
	}
}

func routeMessage[B any](sender common.NodeID, e *Envelope, body B) RouteMessage[B] {
	return RouteMessage[B]{
		MsgID:         e.MsgID,
		Sender:        sender,
		Destination:   e.Destination,
		ReplyTo:       e.ReplyTo,
		CorrelationID: e.CorrelationID,
		Ts:            e.Ts,
		Expires:       e.Expires,
		Body:          body,
	}
}

// Wire converts e into its wire record.
func (e *Envelope) Wire() *wire.Message {
	return &wire.Message{
		MessageID:     e.MsgID.bytes(),
		DestinationID: e.Destination.bytes(),
		CorrelationID: e.CorrelationID.bytes(),
		Status:        e.Status,
		ReplyTo:       e.ReplyTo.bytes(),
		Ts:            e.Ts,
		Expires:       e.Expires,
		Payload:       e.Payload,
	}
}

// EnvelopeFromWire validates a decoded wire record. Identifier fields must
// be exactly IDLength bytes when present.
func EnvelopeFromWire(m *wire.Message) (*Envelope, error) {
	var (
		e   = &Envelope{Status: m.Status, Ts: m.Ts, Expires: m.Expires, Payload: m.Payload}
		err error
	)
	if e.MsgID, err = MessageIDFromBytes(m.MessageID); err != nil {
		return nil, fmt.Errorf("message_id: %w", err)
	}
	if e.Destination, err = DestinationIDFromBytes(m.DestinationID); err != nil {
		return nil, fmt.Errorf("destination_id: %w", err)
	}
	if len(m.CorrelationID) > 0 {
		if e.CorrelationID, err = MessageIDFromBytes(m.CorrelationID); err != nil {
			return nil, fmt.Errorf("correlation_id: %w", err)
		}
	}
	if len(m.ReplyTo) > 0 {
		if e.ReplyTo, err = DestinationIDFromBytes(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply_to: %w", err)
		}
	}
	return e, nil
}

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
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/common/mclock"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/gorilla/websocket"
)

const (
	outboundQueueSize = 64
	frameWriteTimeout = 10 * time.Second
	frameReadLimit    = 16 * 1024 * 1024
	closeGracePeriod  = 2 * time.Second
)

// frameConn is a message oriented duplex connection. *websocket.Conn and
// *PipeConn implement it.
type frameConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(typ int, data []byte) error
	WriteControl(typ int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Peer is a connection to a remote node that completed the handshake. It is
// the router's transport for that node: Send queues frames for the peer's
// writer, inbound frames are delivered to the router in arrival order.
type Peer struct {
	conn    frameConn
	info    PeerInfo
	router  *rpc.Router
	monitor *Monitor
	clock   mclock.Clock
	tick    time.Duration
	log     log.Logger

	out         chan []byte
	interaction chan struct{}
	pongs       chan string
	disc        chan error
	closing     chan struct{} // closed when the peer stops accepting frames
	closed      chan struct{} // closed when run has returned
	err         error
}

func newPeer(conn frameConn, info PeerInfo, router *rpc.Router, cfg *Config) *Peer {
	p := &Peer{
		conn:        conn,
		info:        info,
		router:      router,
		monitor:     NewMonitor(cfg.Monitor, cfg.Clock),
		clock:       cfg.Clock,
		tick:        cfg.TickInterval,
		log:         cfg.Logger.New("peer", info.NodeID, "addr", info.PeerAddr),
		out:         make(chan []byte, outboundQueueSize),
		interaction: make(chan struct{}, 1),
		pongs:       make(chan string),
		disc:        make(chan error),
		closing:     make(chan struct{}),
		closed:      make(chan struct{}),
	}
	conn.SetReadLimit(frameReadLimit)
	conn.SetPingHandler(func(data string) error {
		p.signalInteraction()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(frameWriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(data string) error {
		select {
		case p.pongs <- data:
		case <-p.closing:
		}
		return nil
	})
	return p
}

// ID returns the node id the remote side presented in the handshake.
func (p *Peer) ID() common.NodeID {
	return p.info.NodeID
}

// Info returns the handshake data of the peer.
func (p *Peer) Info() PeerInfo {
	return p.info
}

// Inbound reports whether the remote side dialed us.
func (p *Peer) Inbound() bool {
	return p.info.Inbound
}

// String implements fmt.Stringer.
func (p *Peer) String() string {
	return fmt.Sprintf("Peer %x %v", p.info.NodeID[:8], p.info.PeerAddr)
}

// Send queues env for transmission. It blocks while the outbound queue is
// full. Once the peer is shutting down Send fails with ErrPeerClosed.
func (p *Peer) Send(ctx context.Context, env *rpc.Envelope) error {
	data, err := env.Wire().MarshalBinary()
	if err != nil {
		return err
	}
	select {
	case <-p.closing:
		return ErrPeerClosed
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.closing:
		return ErrPeerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect terminates the connection. It returns once the peer has shut
// down.
func (p *Peer) Disconnect(reason error) {
	select {
	case p.disc <- reason:
	case <-p.closed:
	}
	<-p.closed
}

// Done is closed when the connection has shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.closed
}

// Err returns the reason the connection ended. It is valid after Done is
// closed.
func (p *Peer) Err() error {
	<-p.closed
	return p.err
}

func (p *Peer) run(ctx context.Context) {
	var (
		readErr  = make(chan error, 1)
		readDone bool
		err      error
	)
	defer close(p.closed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { readErr <- p.readLoop(ctx) }()

	tick := p.clock.After(p.tick)
loop:
	for {
		select {
		case data := <-p.out:
			if err = p.writeFrame(data); err != nil {
				break loop
			}
		case <-p.interaction:
			p.monitor.Interaction()
		case nonce := <-p.pongs:
			if !p.monitor.Pong(nonce) {
				p.log.Trace("Ignoring unexpected pong")
			}
		case <-tick:
			tick = p.clock.After(p.tick)
			switch act := p.monitor.NextAction(); act.Kind {
			case SendPing:
				p.log.Trace("Sending ping", "nonce", act.Nonce)
				deadline := time.Now().Add(frameWriteTimeout)
				if err = p.conn.WriteControl(websocket.PingMessage, []byte(act.Nonce), deadline); err != nil {
					break loop
				}
			case Stop:
				pingTimeoutCounter.Inc(1)
				err = newProtoError(PingTimeout, "no pong within %v", p.monitor.cfg.MaxWaitTime)
				break loop
			}
		case err = <-readErr:
			readDone = true
			break loop
		case err = <-p.disc:
			break loop
		case <-ctx.Done():
			err = errServerStopped
			break loop
		}
	}

	close(p.closing)
	p.router.ReleaseEndpoint(p.info.NodeID, p)
	p.flush()
	p.err = err

	var perr *protoError
	switch {
	case errors.As(err, &perr):
		protoErrorCounter.Inc(1)
		p.log.Debug("Closing connection on protocol error", "err", err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		p.log.Debug("Remote closed connection", "err", err)
	default:
		p.log.Debug("Closing connection", "err", err)
	}
	msg := websocket.FormatCloseMessage(closeCode(err), closeText(err))
	p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))

	// Give the remote side a moment to answer the close frame.
	if !readDone {
		timeout := time.NewTimer(closeGracePeriod)
		select {
		case <-readErr:
			readDone = true
		case <-timeout.C:
		}
		timeout.Stop()
	}
	p.conn.Close()
	if !readDone {
		<-readErr
	}
}

// flush writes the frames queued before the peer stopped accepting them.
func (p *Peer) flush() {
	for {
		select {
		case data := <-p.out:
			if err := p.writeFrame(data); err != nil {
				p.log.Trace("Dropping queued frames", "count", len(p.out)+1, "err", err)
				return
			}
		default:
			return
		}
	}
}

func (p *Peer) writeFrame(data []byte) error {
	p.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	egressFrameCounter.Inc(1)
	return nil
}

func (p *Peer) readLoop(ctx context.Context) error {
	for {
		typ, data, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}
		p.signalInteraction()
		if typ != websocket.BinaryMessage {
			return newProtoError(InvalidFrame, "unexpected %s frame", frameType(typ))
		}
		var msg wire.Message
		if err := msg.UnmarshalBinary(data); err != nil {
			return newProtoError(InvalidFrame, "%w", err)
		}
		env, err := rpc.EnvelopeFromWire(&msg)
		if err != nil {
			return newProtoError(InvalidFrame, "%w", err)
		}
		ingressFrameCounter.Inc(1)
		p.log.Trace("Received message", "id", env.MsgID, "dest", env.Destination, "status", env.Status)
		p.router.Deliver(ctx, p.info.NodeID, env)
	}
}

// signalInteraction tells the run loop that the remote side sent something.
func (p *Peer) signalInteraction() {
	select {
	case p.interaction <- struct{}{}:
	default:
	}
}

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
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrPipeClosed is returned from pipe operations after the pipe has been
// closed.
var ErrPipeClosed = errors.New("p2p: read or write on closed frame pipe")

// pipeBuffer bounds the number of frames in flight per direction.
const pipeBuffer = 64

type frame struct {
	typ  int
	data []byte
}

// Pipe creates an in-memory connection pair carrying websocket frames.
// Frames written on one end are read on the other. Control frames are
// handled the way a websocket connection handles them: pings are answered
// from ReadMessage, pongs are passed to the pong handler and close frames
// end the stream with a *websocket.CloseError.
func Pipe() (*PipeConn, *PipeConn) {
	var (
		c1, c2  = make(chan frame, pipeBuffer), make(chan frame, pipeBuffer)
		closing = make(chan struct{})
		once    = new(sync.Once)
		p1      = &PipeConn{w: c1, r: c2, closing: closing, once: once}
		p2      = &PipeConn{w: c2, r: c1, closing: closing, once: once}
	)
	return p1, p2
}

// PipeConn is an endpoint of a frame pipe.
type PipeConn struct {
	w       chan<- frame
	r       <-chan frame
	closing chan struct{}
	once    *sync.Once

	mu           sync.Mutex
	readDeadline time.Time
	pingHandler  func(string) error
	pongHandler  func(string) error
}

// ReadMessage returns the next data frame sent on the other end.
func (p *PipeConn) ReadMessage() (int, []byte, error) {
	for {
		p.mu.Lock()
		deadline := p.readDeadline
		p.mu.Unlock()

		f, err := p.next(deadline)
		if err != nil {
			return 0, nil, err
		}
		switch f.typ {
		case websocket.PingMessage:
			if err := p.handler(true)(string(f.data)); err != nil {
				return 0, nil, err
			}
		case websocket.PongMessage:
			if err := p.handler(false)(string(f.data)); err != nil {
				return 0, nil, err
			}
		case websocket.CloseMessage:
			cerr := &websocket.CloseError{Code: websocket.CloseNoStatusReceived}
			if len(f.data) >= 2 {
				cerr.Code = int(binary.BigEndian.Uint16(f.data))
				cerr.Text = string(f.data[2:])
			}
			return 0, nil, cerr
		default:
			return f.typ, f.data, nil
		}
	}
}

// next returns the next frame. Frames written before the pipe was closed
// are still delivered.
func (p *PipeConn) next(deadline time.Time) (frame, error) {
	select {
	case f := <-p.r:
		return f, nil
	default:
	}
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case f := <-p.r:
		return f, nil
	case <-p.closing:
		return frame{}, ErrPipeClosed
	case <-timeout:
		return frame{}, errPipeTimeout
	}
}

func (p *PipeConn) handler(ping bool) func(string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ping {
		if p.pingHandler != nil {
			return p.pingHandler
		}
		return func(data string) error {
			return p.WriteControl(websocket.PongMessage, []byte(data), time.Time{})
		}
	}
	if p.pongHandler != nil {
		return p.pongHandler
	}
	return func(string) error { return nil }
}

// WriteMessage sends a data frame.
func (p *PipeConn) WriteMessage(typ int, data []byte) error {
	return p.write(frame{typ, append([]byte(nil), data...)})
}

// WriteControl sends a control frame. The deadline is ignored.
func (p *PipeConn) WriteControl(typ int, data []byte, _ time.Time) error {
	return p.write(frame{typ, append([]byte(nil), data...)})
}

func (p *PipeConn) write(f frame) error {
	select {
	case <-p.closing:
		return ErrPipeClosed
	default:
	}
	select {
	case p.w <- f:
		return nil
	case <-p.closing:
		return ErrPipeClosed
	}
}

// SetReadDeadline sets the deadline for future ReadMessage calls.
func (p *PipeConn) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	p.readDeadline = t
	p.mu.Unlock()
	return nil
}

// SetWriteDeadline is a no-op, writes only block while the buffer is full.
func (p *PipeConn) SetWriteDeadline(time.Time) error { return nil }

// SetReadLimit is a no-op.
func (p *PipeConn) SetReadLimit(int64) {}

// SetPingHandler sets the handler for ping frames. The default handler
// answers with a pong carrying the same data.
func (p *PipeConn) SetPingHandler(h func(string) error) {
	p.mu.Lock()
	p.pingHandler = h
	p.mu.Unlock()
}

// SetPongHandler sets the handler for pong frames.
func (p *PipeConn) SetPongHandler(h func(string) error) {
	p.mu.Lock()
	p.pongHandler = h
	p.mu.Unlock()
}

// RemoteAddr returns a placeholder address.
func (p *PipeConn) RemoteAddr() net.Addr { return pipeAddr{} }

// Close unblocks pending reads and writes on both ends of the pipe. They
// return ErrPipeClosed.
func (p *PipeConn) Close() error {
	p.once.Do(func() { close(p.closing) })
	return nil
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

type pipeTimeoutError struct{}

func (pipeTimeoutError) Error() string   { return "p2p: pipe read timeout" }
func (pipeTimeoutError) Timeout() bool   { return true }
func (pipeTimeoutError) Temporary() bool { return true }

var errPipeTimeout net.Error = pipeTimeoutError{}

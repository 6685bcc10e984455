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
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golemfactory/golem-unlimited/common/mclock"
)

// MonitorConfig holds the liveness limits of a connection.
type MonitorConfig struct {
	MaxWaitTime          time.Duration // how long a ping may stay unanswered
	MaxNoInteractionTime time.Duration // idle time after which a ping is sent
}

// DefaultMonitorConfig contains the default liveness limits.
var DefaultMonitorConfig = MonitorConfig{
	MaxWaitTime:          10 * time.Second,
	MaxNoInteractionTime: 15 * time.Second,
}

// ActionKind is the verdict of a monitor tick.
type ActionKind int

const (
	Continue ActionKind = iota
	SendPing
	Stop
)

func (k ActionKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case SendPing:
		return "ping"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is returned by Monitor.NextAction. Nonce is set for SendPing.
type Action struct {
	Kind  ActionKind
	Nonce string
}

// Monitor tracks the liveness of one connection. It is not safe for
// concurrent use; a connection drives it from its own goroutine.
type Monitor struct {
	cfg   MonitorConfig
	clock mclock.Clock

	lastInteraction mclock.AbsTime
	pendingNonce    string
	pingSentAt      mclock.AbsTime
}

// NewMonitor creates a monitor for a connection whose handshake just
// completed. The handshake counts as the first interaction.
func NewMonitor(cfg MonitorConfig, clock mclock.Clock) *Monitor {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Monitor{cfg: cfg, clock: clock, lastInteraction: clock.Now()}
}

// Interaction records inbound traffic. It does not clear a pending ping.
func (m *Monitor) Interaction() {
	m.lastInteraction = m.clock.Now()
}

// Pong records a pong carrying text. It reports whether text matched the
// pending ping; stale and forged pongs are ignored.
func (m *Monitor) Pong(text string) bool {
	if m.pendingNonce == "" || text != m.pendingNonce {
		return false
	}
	m.pendingNonce = ""
	m.lastInteraction = m.clock.Now()
	return true
}

// Pending reports whether a ping is waiting for its pong.
func (m *Monitor) Pending() bool {
	return m.pendingNonce != ""
}

// NextAction is called on every tick of the connection. An unanswered ping
// older than MaxWaitTime stops the connection. A connection idle for longer
// than MaxNoInteractionTime gets a fresh ping.
func (m *Monitor) NextAction() Action {
	now := m.clock.Now()
	if m.pendingNonce != "" {
		if now.Sub(m.pingSentAt) > m.cfg.MaxWaitTime {
			return Action{Kind: Stop}
		}
		return Action{Kind: Continue}
	}
	if now.Sub(m.lastInteraction) > m.cfg.MaxNoInteractionTime {
		m.pendingNonce = newNonce()
		m.pingSentAt = now
		return Action{Kind: SendPing, Nonce: m.pendingNonce}
	}
	return Action{Kind: Continue}
}

func newNonce() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("can't read random bytes: " + err.Error())
	}
	return fmt.Sprintf("%x%x", binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:]))
}

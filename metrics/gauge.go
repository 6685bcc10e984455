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

package metrics

import "sync/atomic"

// GaugeSnapshot is the value of a Gauge at some point in time.
type GaugeSnapshot interface {
	Value() int64
}

// Gauge is an instantaneous value, such as the number of connected peers.
type Gauge interface {
	Update(int64)
	Inc(int64)
	Dec(int64)
	Snapshot() GaugeSnapshot
}

// GetOrRegisterGauge returns the gauge registered under name in r, creating
// it if needed. A nil r means DefaultRegistry.
func GetOrRegisterGauge(name string, r Registry) Gauge {
	return orDefault(r).GetOrRegister(name, NewGauge).(Gauge)
}

// NewRegisteredGauge creates a gauge and registers it under name.
func NewRegisteredGauge(name string, r Registry) Gauge {
	g := NewGauge()
	orDefault(r).Register(name, g)
	return g
}

func NewGauge() Gauge {
	return new(gauge)
}

type gauge struct{ v atomic.Int64 }

type gaugeSnapshot int64

func (g gaugeSnapshot) Value() int64 { return int64(g) }

func (g *gauge) Update(v int64)          { g.v.Store(v) }
func (g *gauge) Inc(i int64)             { g.v.Add(i) }
func (g *gauge) Dec(i int64)             { g.v.Add(-i) }
func (g *gauge) Snapshot() GaugeSnapshot { return gaugeSnapshot(g.v.Load()) }

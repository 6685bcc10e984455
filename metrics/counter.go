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

// CounterSnapshot is the value of a Counter at some point in time.
type CounterSnapshot interface {
	Count() int64
}

// Counter is a monotonic event count. Dec exists for the rare count that is
// corrected after the fact.
type Counter interface {
	Inc(int64)
	Dec(int64)
	Clear()
	Snapshot() CounterSnapshot
}

// GetOrRegisterCounter returns the counter registered under name in r,
// creating it if needed. A nil r means DefaultRegistry.
func GetOrRegisterCounter(name string, r Registry) Counter {
	return orDefault(r).GetOrRegister(name, NewCounter).(Counter)
}

// NewRegisteredCounter creates a counter and registers it under name. If the
// name is taken, the returned counter works but is not exported.
func NewRegisteredCounter(name string, r Registry) Counter {
	c := NewCounter()
	orDefault(r).Register(name, c)
	return c
}

func NewCounter() Counter {
	return new(counter)
}

type counter struct{ v atomic.Int64 }

type counterSnapshot int64

func (c counterSnapshot) Count() int64 { return int64(c) }

func (c *counter) Inc(i int64)               { c.v.Add(i) }
func (c *counter) Dec(i int64)               { c.v.Add(-i) }
func (c *counter) Clear()                    { c.v.Store(0) }
func (c *counter) Snapshot() CounterSnapshot { return counterSnapshot(c.v.Load()) }

func orDefault(r Registry) Registry {
	if r == nil {
		return DefaultRegistry
	}
	return r
}

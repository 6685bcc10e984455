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

// Package mclock provides a monotonic clock that can be swapped for a
// simulated one in tests.
package mclock

import "time"

var epoch = time.Now()

// AbsTime is a point on the monotonic clock, measured from process start.
type AbsTime time.Duration

// Now returns the current monotonic time.
func Now() AbsTime {
	return AbsTime(time.Since(epoch))
}

func (t AbsTime) Add(d time.Duration) AbsTime { return t + AbsTime(d) }

func (t AbsTime) Sub(t2 AbsTime) time.Duration { return time.Duration(t - t2) }

// Clock is the time source of the peer monitor and the redial loops.
type Clock interface {
	Now() AbsTime
	After(time.Duration) <-chan time.Time
}

// System is the Clock backed by the runtime's monotonic clock.
type System struct{}

func (System) Now() AbsTime                           { return Now() }
func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

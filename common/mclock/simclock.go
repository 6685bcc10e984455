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

package mclock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated is a Clock that only moves when Run is called. Channels returned
// by After receive the virtual time at which they expired. The zero value is
// ready to use.
type Simulated struct {
	mu      sync.Mutex
	now     AbsTime
	seq     uint64
	pending timerQueue
}

type simTimer struct {
	at  AbsTime
	seq uint64
	ch  chan time.Time
}

// timerQueue orders timers by expiry, then by creation.
type timerQueue []*simTimer

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *timerQueue) Push(x any)   { *q = append(*q, x.(*simTimer)) }
func (q *timerQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	*q = old[:len(old)-1]
	return t
}

// Now returns the current virtual time.
func (s *Simulated) Now() AbsTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// After returns a channel that fires once the clock has moved d past now.
func (s *Simulated) After(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &simTimer{at: s.now.Add(d), seq: s.seq, ch: make(chan time.Time, 1)}
	heap.Push(&s.pending, t)
	return t.ch
}

// Pending returns the number of timers that have not fired yet.
func (s *Simulated) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run advances the clock by d. Timers expiring within d fire one at a time in
// expiry order, and the clock reads each timer's expiry while it fires.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now.Add(d)
	for len(s.pending) > 0 && s.pending[0].at <= end {
		t := heap.Pop(&s.pending).(*simTimer)
		s.now = t.at
		t.ch <- time.Time{}.Add(time.Duration(t.at))
	}
	s.now = end
}

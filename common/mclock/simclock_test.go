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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Clock = System{}
	_ Clock = new(Simulated)
)

func TestSimulatedAfter(t *testing.T) {
	var c Simulated
	c.Run(time.Hour)

	ch := c.After(30 * time.Second)
	c.Run(29 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}
	c.Run(time.Second)
	select {
	case stamp := <-ch:
		assert.Equal(t, time.Time{}.Add(time.Hour+30*time.Second), stamp)
	default:
		t.Fatal("timer didn't fire")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestSimulatedOrder(t *testing.T) {
	var c Simulated
	late := c.After(2 * time.Second)
	first := c.After(time.Second)
	second := c.After(time.Second)
	require.Equal(t, 3, c.Pending())

	c.Run(time.Second)
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Len(t, late, 0)
	assert.Equal(t, 1, c.Pending())

	c.Run(5 * time.Second)
	assert.Len(t, late, 1)
	assert.Equal(t, AbsTime(6*time.Second), c.Now())
}

func TestAbsTimeSub(t *testing.T) {
	var c Simulated
	start := c.Now()
	c.Run(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Now().Sub(start))
	assert.Equal(t, start, c.Now().Add(-5*time.Second))
}

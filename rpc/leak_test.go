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
	"testing"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCloseNoLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewRouter(common.RandomNodeID())
	rr := NewReplyRouter(r)
	rc := NewRemotingContext(r, "leak")
	Bind(rc, 7, echo[int])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := Call[int, int](ctx, rr, r.Self(), PublicDestination(7), 3)
	require.NoError(t, err)
	require.Equal(t, 3, resp)

	rc.Close()
	rr.Close()
	r.Close()
}

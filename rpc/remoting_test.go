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
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindSender(t *testing.T) {
	r := newTestRouter(t)
	rc := newTestService(t, r, "whoami")
	peer := common.RandomNodeID()
	tr := newChanTransport()
	r.AddEndpoint(peer, tr)

	Bind(rc, 10, func(ctx context.Context, sender common.NodeID, req struct{}) (common.NodeID, error) {
		return sender, nil
	})
	req := &Envelope{MsgID: NewMessageID(), Destination: PublicDestination(10), ReplyTo: GenDestinationID(), Payload: "{}"}
	r.Deliver(context.Background(), peer, req)

	reply := tr.next(t)
	assert.Equal(t, wire.StatusReply, reply.Status)
	assert.Equal(t, req.ReplyTo, reply.Destination)
	assert.Equal(t, req.MsgID, reply.CorrelationID)
	var sender common.NodeID
	require.NoError(t, json.Unmarshal([]byte(reply.Payload), &sender))
	assert.Equal(t, peer, sender)
}

func TestBindEventNoReply(t *testing.T) {
	r := newTestRouter(t)
	rc := newTestService(t, r, "events")
	peer := common.RandomNodeID()
	tr := newChanTransport()
	r.AddEndpoint(peer, tr)

	got := make(chan point, 1)
	Bind(rc, 11, func(ctx context.Context, sender common.NodeID, req point) (point, error) {
		got <- req
		return req, nil
	})
	r.Deliver(context.Background(), peer, &Envelope{MsgID: NewMessageID(), Destination: PublicDestination(11), Status: wire.StatusEvent, Payload: `{"x":5}`})

	select {
	case p := <-got:
		assert.Equal(t, 5, p.X)
	case <-time.After(2 * time.Second):
		t.Fatal("event not handled")
	}
	tr.expectNone(t)
}

func TestNotifyLocal(t *testing.T) {
	r := newTestRouter(t)
	rc := newTestService(t, r, "events")
	got := make(chan point, 1)
	Bind(rc, 12, func(ctx context.Context, sender common.NodeID, req point) (struct{}, error) {
		got <- req
		return struct{}{}, nil
	})
	require.NoError(t, Notify(context.Background(), r, r.Self(), PublicDestination(12), point{X: 2}))
	assert.Equal(t, point{X: 2}, <-got)
}

func TestRemotingSerial(t *testing.T) {
	r := newTestRouter(t)
	rr := newTestReplyRouter(t, r)
	rc := newTestService(t, r, "counter")

	var (
		mu      sync.Mutex
		running int
		overlap bool
	)
	handler := func(ctx context.Context, sender common.NodeID, n int) (int, error) {
		mu.Lock()
		running++
		overlap = overlap || running > 1
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return n + 1, nil
	}
	Bind(rc, 20, handler)
	Bind(rc, 21, handler)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := Call[int, int](context.Background(), rr, r.Self(), PublicDestination(uint32(20+i%2)), i)
			assert.NoError(t, err)
			assert.Equal(t, i+1, resp)
		}(i)
	}
	wg.Wait()
	assert.False(t, overlap, "handlers of one context ran concurrently")
}

func TestRemotingClose(t *testing.T) {
	r := newTestRouter(t)
	rr := newTestReplyRouter(t, r)
	rc := NewRemotingContext(r, "closing")
	Bind(rc, 30, echo[int])
	Bind(rc, 31, echo[int])
	require.Len(t, r.Destinations(), 2)

	rc.Close()
	assert.Empty(t, r.Destinations())
	_, err := Call[int, int](context.Background(), rr, r.Self(), PublicDestination(30), 1)
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestRemotingCloseRejectsQueued(t *testing.T) {
	r := newTestRouter(t)
	rr := newTestReplyRouter(t, r)
	rc := NewRemotingContext(r, "slow")
	started, release := make(chan struct{}), make(chan struct{})
	Bind(rc, 7, func(ctx context.Context, sender common.NodeID, req int) (int, error) {
		if req == 0 {
			close(started)
			<-release
		}
		return req, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	type result struct {
		resp int
		err  error
	}
	call := func(req int) <-chan result {
		ch := make(chan result, 1)
		go func() {
			resp, err := Call[int, int](ctx, rr, r.Self(), PublicDestination(7), req)
			ch <- result{resp, err}
		}()
		return ch
	}
	first := call(0)
	<-started
	second := call(1)
	require.Eventually(t, func() bool { return len(rc.inbox) == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		rc.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool { return rc.ctx.Err() != nil }, time.Second, time.Millisecond)
	close(release)

	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.resp)

	start := time.Now()
	res = <-second
	assert.ErrorIs(t, res.err, ErrNoDestination)
	assert.Less(t, time.Since(start), time.Second)
	<-closed
	assert.Zero(t, rr.Pending())
}

func TestTypedEndpoint(t *testing.T) {
	r := newTestRouter(t)
	rr := newTestReplyRouter(t, r)
	Bind(newTestService(t, r, "echo"), 42, echo[point])

	ep := NewEndpoint[point, point](rr, r.Self(), PublicDestination(42))
	resp, err := ep.Send(context.Background(), point{X: 9})
	require.NoError(t, err)
	assert.Equal(t, point{X: 9}, resp)
	assert.Equal(t, r.Self(), ep.Node())
}

// Two routers joined by a loopback transport pair: a service on B echoes
// what A's reply router sends it.
func TestTwoRouterEcho(t *testing.T) {
	a, b := newTestRouter(t), newTestRouter(t)
	a.AddEndpoint(b.Self(), &loopTransport{from: a.Self(), to: b})
	b.AddEndpoint(a.Self(), &loopTransport{from: b.Self(), to: a})

	Bind(newTestService(t, b, "echo"), 42, echo[json.RawMessage])
	rr := newTestReplyRouter(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			body := json.RawMessage(`{"x":` + string(rune('1'+n)) + `}`)
			resp, err := rr.CallUntyped(ctx, b.Self(), PublicDestination(42), body)
			if assert.NoError(t, err) {
				assert.JSONEq(t, string(body), string(resp))
			}
		}(i)
	}
	wg.Wait()

	resp, err := Call[point, point](ctx, rr, b.Self(), PublicDestination(42), point{X: 1})
	require.NoError(t, err)
	assert.Equal(t, point{X: 1}, resp)
}

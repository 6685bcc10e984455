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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves srv over HTTP and returns its peer address.
func listen(t *testing.T, srv *Server) string {
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestServerWebsocketEcho(t *testing.T) {
	a, b := newTestServer(t, testConfig(t)), newTestServer(t, testConfig(t))
	addr := listen(t, b)

	rc := rpc.NewRemotingContext(b.router, "echo")
	defer rc.Close()
	rpc.Bind(rc, 42, func(ctx context.Context, sender common.NodeID, req json.RawMessage) (json.RawMessage, error) {
		return req, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := a.Dial(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, b.Self(), p.ID())

	rr := rpc.NewReplyRouter(a.router)
	defer rr.Close()

	reply, err := rr.CallUntyped(ctx, b.Self(), rpc.PublicDestination(42), json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(reply))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := json.RawMessage(fmt.Sprintf(`{"x":%d}`, i))
			resp, err := rr.CallUntyped(ctx, b.Self(), rpc.PublicDestination(42), req)
			if assert.NoError(t, err) {
				assert.JSONEq(t, string(req), string(resp))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, rr.Pending())
}

func TestServerOrigins(t *testing.T) {
	cfg := testConfig(t)
	cfg.WSOrigins = []string{"http://good.example"}
	b := newTestServer(t, cfg)
	url := "ws://" + listen(t, b) + WSPath

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": {"http://good.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestServerSupervisor(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedialInterval = 50 * time.Millisecond
	a, b := newTestServer(t, cfg), newTestServer(t, testConfig(t))
	addr := listen(t, b)

	a.Connect(addr)
	a.Connect(addr) // no-op
	assert.Equal(t, []string{addr}, a.Supervised())
	assert.Eventually(t, func() bool {
		return len(a.Connected()) == 1 && b.Peers().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Drop the connection from the accepting side, the supervisor re-dials.
	require.True(t, b.DropPeer(a.Self()))
	assert.Eventually(t, func() bool {
		_, ok := b.Peers().Peer(a.Self())
		return ok && len(a.Connected()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	a.Disconnect(addr)
	assert.Empty(t, a.Supervised())
	assert.Empty(t, a.Connected())
	assert.Eventually(t, func() bool {
		return b.Peers().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, b.DropPeer(a.Self()))
}

func TestServerSupervisorRetriesDial(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedialInterval = 20 * time.Millisecond
	cfg.HandshakeTimeout = 200 * time.Millisecond
	a := newTestServer(t, cfg)

	b := newTestServer(t, testConfig(t))
	ts := httptest.NewUnstartedServer(b)
	defer ts.Close()
	addr := ts.Listener.Addr().String()

	a.Connect(addr)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, a.Connected())

	ts.Start()
	assert.Eventually(t, func() bool {
		return len(a.Connected()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerStop(t *testing.T) {
	a, b := newTestServer(t, testConfig(t)), newTestServer(t, testConfig(t))
	addr := listen(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := a.Dial(ctx, addr)
	require.NoError(t, err)

	b.Stop()
	<-p.Done()
	assert.Empty(t, a.router.Endpoints())

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest("GET", WSPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err = a.Dial(ctx, addr)
	assert.Error(t, err)
}

func TestDialURL(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.1:61622/ws/", dialURL("10.0.0.1:61622"))
	assert.Equal(t, "wss://hub.example/ws/", dialURL("wss://hub.example/ws/"))
}

func TestRuleAllowsOrigin(t *testing.T) {
	tests := []struct {
		rule, origin string
		want         bool
	}{
		{"http://localhost", "http://localhost", true},
		{"http://localhost", "https://localhost", false},
		{"localhost", "https://localhost:8080", true},
		{"localhost:8080", "http://localhost:8080", true},
		{"localhost:8080", "http://localhost:9090", false},
		{"https://hub.example", "https://hub.example:443", true},
		{"https://hub.example:8443", "https://hub.example", false},
		{"http://a.example", "http://b.example", false},
	}
	for _, tt := range tests {
		got := ruleAllowsOrigin(tt.rule, tt.origin)
		assert.Equal(t, tt.want, got, "rule %q origin %q", tt.rule, tt.origin)
	}
}

func TestServerHelloResources(t *testing.T) {
	a, b := newTestServer(t, testConfig(t)), newTestServer(t, testConfig(t))
	a.local.maxRAM, a.local.maxStorage = 8<<30, 512<<30

	_, pb := connectPipe(t, a, b)
	info := pb.Info()
	assert.Equal(t, uint64(8<<30), info.MaxRAM)
	assert.Equal(t, uint64(512<<30), info.MaxStorage)
}

func TestServerInboundThrottle(t *testing.T) {
	cfg := testConfig(t)
	cfg.InboundRate, cfg.InboundBurst = 0.001, 1
	srv := newTestServer(t, cfg)
	srv.inbound.Allow()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, WSPath, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

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

package node

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/internal/testlog"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodeConfig(t *testing.T, name string) *Config {
	cfg := DefaultConfig
	cfg.DataDir = t.TempDir()
	cfg.Name = name
	cfg.HTTPPort = 0
	cfg.RedialInterval = 50 * time.Millisecond
	cfg.DebugCallTimeout = 5 * time.Second
	cfg.Logger = testlog.Logger(t, log.LvlTrace).New("node", name)
	return &cfg
}

func startNode(t *testing.T, cfg *Config) *Node {
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { n.Close() })
	return n
}

// connectedPair starts two nodes, a dialing b.
func connectedPair(t *testing.T) (a, b *Node) {
	bcfg := testNodeConfig(t, "node-b")
	bcfg.Role = wire.RoleHub
	b = startNode(t, bcfg)

	acfg := testNodeConfig(t, "node-a")
	acfg.Role = wire.RoleProvider
	acfg.Peers = []string{b.HTTPEndpoint()}
	a = startNode(t, acfg)

	require.Eventually(t, func() bool {
		return a.Peers().Len() == 1 && b.Peers().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	return a, b
}

func httpDo(t *testing.T, method, url string, body string) (int, []byte) {
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	blob, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, blob
}

func TestNodeLifecycle(t *testing.T) {
	n, err := New(testNodeConfig(t, "x"))
	require.NoError(t, err)
	assert.Equal(t, "", n.HTTPEndpoint())

	require.NoError(t, n.Start())
	assert.ErrorIs(t, n.Start(), ErrNodeRunning)
	assert.NotEqual(t, "", n.HTTPEndpoint())

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Close(), ErrNodeStopped)
	assert.ErrorIs(t, n.Start(), ErrNodeStopped)
}

func TestNodeCloseWithoutStart(t *testing.T) {
	n, err := New(testNodeConfig(t, "x"))
	require.NoError(t, err)
	require.NoError(t, n.Close())
}

func TestNodeIdentityPersisted(t *testing.T) {
	cfg := testNodeConfig(t, "x")
	n, err := New(cfg)
	require.NoError(t, err)
	id := n.Self()
	require.NoError(t, n.Close())

	n, err = New(cfg)
	require.NoError(t, err)
	defer n.Close()
	assert.Equal(t, id, n.Self())
}

func TestNodeDatadirLock(t *testing.T) {
	cfg := testNodeConfig(t, "x")
	n, err := New(cfg)
	require.NoError(t, err)

	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrDatadirUsed)

	require.NoError(t, n.Close())
	n, err = New(cfg)
	require.NoError(t, err)
	n.Close()
}

func TestNodeRemoteInfo(t *testing.T) {
	a, b := connectedPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := a.RemoteInfo(ctx, b.Self())
	require.NoError(t, err)
	assert.Equal(t, b.Self(), info.NodeID)
	assert.Equal(t, "node-b", info.Name)
	assert.Equal(t, wire.RoleHub, info.Role)
	assert.Equal(t, p2p.ProtocolVersion, info.Version)
	assert.Equal(t, 1, info.Peers)
	pub, err := btcec.ParsePubKey(info.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, b.Self(), PubkeyToNodeID(pub))
	blob, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Regexp(t, `"publicKey":"0x0[23][0-9a-f]{64}"`, string(blob))

	peer, ok := b.Peers().Peer(a.Self())
	require.True(t, ok)
	assert.Equal(t, "node-a", peer.NodeName)
	assert.Equal(t, wire.RoleProvider, peer.Role)
}

func TestNodePeerAPI(t *testing.T) {
	a, b := connectedPair(t)
	base := "http://" + a.HTTPEndpoint()

	status, blob := httpDo(t, http.MethodGet, base+"/peer", "")
	require.Equal(t, http.StatusOK, status)
	var peers []p2p.PeerInfo
	require.NoError(t, json.Unmarshal(blob, &peers))
	require.Len(t, peers, 1)
	assert.Equal(t, b.Self(), peers[0].NodeID)
	assert.False(t, peers[0].Inbound)

	send := func(node common.NodeID, dest uint32) (int, []byte) {
		req, _ := json.Marshal(SendToRequest{NodeID: node, DestinationID: dest, Body: json.RawMessage(`{}`)})
		return httpDo(t, http.MethodPost, base+"/peer/send-to", string(req))
	}
	status, blob = send(b.Self(), InfoDestination)
	require.Equal(t, http.StatusOK, status, string(blob))
	var info NodeInfo
	require.NoError(t, json.Unmarshal(blob, &info))
	assert.Equal(t, b.Self(), info.NodeID)

	status, _ = send(b.Self(), 77)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = send(common.RandomNodeID(), InfoDestination)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = httpDo(t, http.MethodPost, base+"/peer/send-to", "not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNodeConnectAPI(t *testing.T) {
	b := startNode(t, testNodeConfig(t, "node-b"))
	a := startNode(t, testNodeConfig(t, "node-a"))
	base := "http://" + a.HTTPEndpoint()
	req, _ := json.Marshal(ConnectRequest{Addr: b.HTTPEndpoint()})

	status, blob := httpDo(t, http.MethodPost, base+"/peer/connect", string(req))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["`+b.HTTPEndpoint()+`"]`, string(blob))
	require.Eventually(t, func() bool {
		return b.Peers().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	status, blob = httpDo(t, http.MethodPost, base+"/peer/disconnect", string(req))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(blob))
	require.Eventually(t, func() bool {
		return b.Peers().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNodeDebugAPI(t *testing.T) {
	cfg := testNodeConfig(t, "debug")
	cfg.DebugCallTimeout = 200 * time.Millisecond
	n := startNode(t, cfg)
	base := "http://" + n.HTTPEndpoint()

	status, blob := httpDo(t, http.MethodPost, base+"/m/1", "")
	require.Equal(t, http.StatusOK, status, string(blob))
	var info NodeInfo
	require.NoError(t, json.Unmarshal(blob, &info))
	assert.Equal(t, n.Self(), info.NodeID)
	assert.Equal(t, "debug", info.Name)

	status, _ = httpDo(t, http.MethodPost, base+"/m/99", "{}")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = httpDo(t, http.MethodPost, base+"/m/abc", "{}")
	assert.Equal(t, http.StatusBadRequest, status)

	var sender common.NodeID
	rpc.Bind(n.Remoting(), 5, func(ctx context.Context, from common.NodeID, req map[string]int) (map[string]int, error) {
		sender = from
		return map[string]int{"y": req["x"] * 2}, nil
	})
	status, blob = httpDo(t, http.MethodPost, base+"/m/5", `{"x":21}`)
	require.Equal(t, http.StatusOK, status, string(blob))
	assert.JSONEq(t, `{"y":42}`, string(blob))
	assert.NotEqual(t, n.Self(), sender, "debug requests come from a loopback id")

	status, _ = httpDo(t, http.MethodPost, base+"/m/5", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, status)

	rpc.Bind(n.Remoting(), 6, func(ctx context.Context, _ common.NodeID, req json.RawMessage) (json.RawMessage, error) {
		time.Sleep(500 * time.Millisecond)
		return req, nil
	})
	status, _ = httpDo(t, http.MethodPost, base+"/m/6", `{}`)
	assert.Equal(t, http.StatusGatewayTimeout, status)
}

func TestNodeNoDebugAPI(t *testing.T) {
	cfg := testNodeConfig(t, "x")
	cfg.NoDebugAPI = true
	n := startNode(t, cfg)

	status, _ := httpDo(t, http.MethodPost, "http://"+n.HTTPEndpoint()+"/m/1", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNodeTagsAPI(t *testing.T) {
	n := startNode(t, testNodeConfig(t, "x"))
	id := common.RandomNodeID()
	url := "http://" + n.HTTPEndpoint() + "/peer/" + id.String() + "/tags"

	status, blob := httpDo(t, http.MethodPut, url, `["gpu","eu"]`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["eu","gpu"]`, string(blob))

	status, blob = httpDo(t, http.MethodDelete, url, `["eu"]`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["gpu"]`, string(blob))

	status, blob = httpDo(t, http.MethodGet, url, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["gpu"]`, string(blob))

	status, _ = httpDo(t, http.MethodGet, "http://"+n.HTTPEndpoint()+"/peer/0x1234/tags", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNodeMetricsAPI(t *testing.T) {
	n := startNode(t, testNodeConfig(t, "x"))

	status, blob := httpDo(t, http.MethodGet, "http://"+n.HTTPEndpoint()+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	var values map[string]int64
	require.NoError(t, json.Unmarshal(blob, &values))
	assert.Contains(t, values, "p2p/peers")
	assert.Contains(t, values, "rpc/route/miss")
}

func TestNodeCors(t *testing.T) {
	cfg := testNodeConfig(t, "x")
	cfg.HTTPCors = []string{"http://example.com"}
	n := startNode(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, "http://"+n.HTTPEndpoint()+"/peer", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

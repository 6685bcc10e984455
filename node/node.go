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

// Package node assembles the routing stack, the peer server and the HTTP
// API into a runnable node.
package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gofrs/flock"
	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/golemfactory/golem-unlimited/rpc"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNodeStopped = errors.New("node not started")
	ErrNodeRunning = errors.New("node already running")
	ErrDatadirUsed = errors.New("datadir already used by another process")
)

const (
	initializingState = iota
	runningState
	closedState
)

// Node is a container on which the routing layer and its services run.
type Node struct {
	config  *Config
	log     log.Logger
	key     *btcec.PrivateKey
	dirLock *flock.Flock

	router   *rpc.Router
	replies  *rpc.ReplyRouter
	remoting *rpc.RemotingContext
	tags     *p2p.TagStore
	peers    *p2p.PeerManager
	server   *p2p.Server
	debug    *debugEndpoint

	lock     sync.Mutex
	state    int
	listener net.Listener
	http     *http.Server
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// New creates a new node. Call Start to serve it.
func New(conf *Config) (*Node, error) {
	confCopy := *conf
	conf = &confCopy
	if conf.Logger == nil {
		conf.Logger = log.New()
	}
	if conf.DebugCallTimeout == 0 {
		conf.DebugCallTimeout = DefaultConfig.DebugCallTimeout
	}
	dirLock, err := openDataDir(conf.DataDir)
	if err != nil {
		return nil, err
	}
	n, err := newNode(conf, dirLock)
	if err != nil {
		closeDataDir(dirLock)
		return nil, err
	}
	return n, nil
}

func newNode(conf *Config, dirLock *flock.Flock) (*Node, error) {
	key, err := conf.NodeKey()
	if err != nil {
		return nil, err
	}
	var tags *p2p.TagStore
	if path := conf.ResolvePath(datadirTags); path != "" {
		if tags, err = p2p.OpenTagStore(path); err != nil {
			return nil, err
		}
	} else {
		tags = p2p.NewMemoryTagStore()
	}
	peers, err := p2p.NewPeerManager(tags)
	if err != nil {
		tags.Close()
		return nil, err
	}

	n := &Node{
		config:  conf,
		log:     conf.Logger,
		key:     key,
		dirLock: dirLock,
		tags:    tags,
		peers:   peers,
	}
	n.router = rpc.NewRouter(KeyToNodeID(key))
	n.replies = rpc.NewReplyRouter(n.router)
	n.remoting = rpc.NewRemotingContext(n.router, "node")
	n.server = p2p.NewServer(conf.p2pConfig(), n.router, peers)
	if !conf.NoDebugAPI {
		n.debug = newDebugEndpoint(n.router, conf.DebugCallTimeout, n.log.New("api", "debug"))
	}
	rpc.Bind(n.remoting, InfoDestination, n.serveInfo)
	return n, nil
}

// openDataDir creates the data directory and locks it against use by other
// processes. Ephemeral nodes get a nil lock.
func openDataDir(dir string) (*flock.Flock, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDatadirUsed
	}
	return lock, nil
}

func closeDataDir(lock *flock.Flock) {
	if lock != nil {
		lock.Unlock()
	}
}

// Start opens the HTTP endpoint and starts dialing the configured peers.
func (n *Node) Start() error {
	n.lock.Lock()
	defer n.lock.Unlock()

	switch n.state {
	case runningState:
		return ErrNodeRunning
	case closedState:
		return ErrNodeStopped
	}
	listener, err := net.Listen("tcp", n.config.HTTPEndpoint())
	if err != nil {
		return err
	}
	n.listener = listener
	n.http = &http.Server{
		Handler:           newHTTPHandlerStack(n.routes(), n.config.HTTPCors, n.log.New("api", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.group, ctx = errgroup.WithContext(ctx)
	n.group.Go(func() error {
		err := n.http.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	n.group.Go(func() error {
		n.logPeerEvents(ctx)
		return nil
	})
	for _, addr := range n.config.Peers {
		n.server.Connect(addr)
	}
	n.state = runningState
	n.log.Info("Node started", "id", n.Self(), "role", n.config.Role, "http", "http://"+listener.Addr().String())
	return nil
}

func (n *Node) logPeerEvents(ctx context.Context) {
	events := make(chan p2p.PeerEvent, 16)
	sub := n.peers.SubscribeEvents(events)
	defer sub.Unsubscribe()

	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case p2p.PeerEventTypeAdd:
				n.log.Info("Peer connected", "peer", ev.Peer.NodeID, "name", ev.Peer.NodeName, "addr", ev.Peer.PeerAddr)
			case p2p.PeerEventTypeDrop:
				n.log.Info("Peer disconnected", "peer", ev.Peer.NodeID, "err", ev.Error)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the node and releases its resources.
func (n *Node) Close() error {
	n.lock.Lock()
	state := n.state
	n.state = closedState
	n.lock.Unlock()

	if state == closedState {
		return ErrNodeStopped
	}
	var errs []error
	if state == runningState {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.http.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	n.server.Stop()
	n.remoting.Close()
	n.replies.Close()
	n.router.Close()
	if state == runningState {
		n.cancel()
		if err := n.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := n.tags.Close(); err != nil {
		errs = append(errs, err)
	}
	closeDataDir(n.dirLock)
	n.log.Info("Node stopped", "id", n.Self())
	return errors.Join(errs...)
}

// Wait blocks until the HTTP server fails or the node is closed.
func (n *Node) Wait() error {
	n.lock.Lock()
	group := n.group
	n.lock.Unlock()
	if group == nil {
		return ErrNodeStopped
	}
	return group.Wait()
}

// Self returns the id of the node.
func (n *Node) Self() common.NodeID {
	return n.router.Self()
}

// Config returns the configuration of the node.
func (n *Node) Config() *Config {
	return n.config
}

// Router returns the message router.
func (n *Node) Router() *rpc.Router {
	return n.router
}

// ReplyRouter returns the router for request/reply calls.
func (n *Node) ReplyRouter() *rpc.ReplyRouter {
	return n.replies
}

// Remoting returns the context services bind their destinations in.
func (n *Node) Remoting() *rpc.RemotingContext {
	return n.remoting
}

// Server returns the peer server.
func (n *Node) Server() *p2p.Server {
	return n.server
}

// Peers returns the peer manager.
func (n *Node) Peers() *p2p.PeerManager {
	return n.peers
}

// HTTPEndpoint returns the address the HTTP server listens on, or "" if the
// node isn't running.
func (n *Node) HTTPEndpoint() string {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.listener == nil {
		return ""
	}
	return n.listener.Addr().String()
}

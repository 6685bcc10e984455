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
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/common/mclock"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	wsReadBuffer  = 4096
	wsWriteBuffer = 4096

	// WSPath is the HTTP path serving peer connections.
	WSPath = "/ws/"
)

// Config holds Server options.
type Config struct {
	// Name is advertised to peers in the handshake.
	Name string
	Role wire.Role

	Monitor MonitorConfig

	// TickInterval is how often the connection monitor is consulted.
	TickInterval time.Duration

	// HandshakeTimeout bounds dialing plus the Hello exchange.
	HandshakeTimeout time.Duration

	// RedialInterval is how often a supervised address is checked and
	// re-dialed when its connection is down.
	RedialInterval time.Duration

	// WSOrigins lists the origins allowed to open inbound connections.
	WSOrigins []string

	// InboundRate limits inbound connection attempts per second. Attempts
	// over the limit are answered with 429.
	InboundRate  float64
	InboundBurst int

	// StorageDir is the directory whose file system size is announced as
	// MaxStorage. The temporary directory is used when empty.
	StorageDir string

	// If Clock is set, it is used to drive the connection monitors.
	Clock mclock.Clock

	Logger log.Logger
}

// DefaultConfig contains the default networking settings.
var DefaultConfig = Config{
	Role:             wire.RoleBoth,
	Monitor:          DefaultMonitorConfig,
	TickInterval:     time.Second,
	HandshakeTimeout: 10 * time.Second,
	RedialInterval:   10 * time.Second,
	InboundRate:      50,
	InboundBurst:     100,
}

func (cfg *Config) sanitize() {
	if cfg.Role == 0 {
		cfg.Role = DefaultConfig.Role
	}
	if cfg.Monitor.MaxWaitTime == 0 {
		cfg.Monitor.MaxWaitTime = DefaultMonitorConfig.MaxWaitTime
	}
	if cfg.Monitor.MaxNoInteractionTime == 0 {
		cfg.Monitor.MaxNoInteractionTime = DefaultMonitorConfig.MaxNoInteractionTime
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultConfig.TickInterval
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultConfig.HandshakeTimeout
	}
	if cfg.RedialInterval == 0 {
		cfg.RedialInterval = DefaultConfig.RedialInterval
	}
	if cfg.InboundRate == 0 {
		cfg.InboundRate = DefaultConfig.InboundRate
	}
	if cfg.InboundBurst == 0 {
		cfg.InboundBurst = DefaultConfig.InboundBurst
	}
	if cfg.Clock == nil {
		cfg.Clock = mclock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Root()
	}
}

// Server accepts and dials peer connections and attaches them to a router.
// It serves inbound connections as an http.Handler.
type Server struct {
	Config

	router   *rpc.Router
	peers    *PeerManager
	local    localNode
	log      log.Logger
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	inbound  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	supervisors map[string]*supervisor
}

// NewServer creates a server for the node owning router.
func NewServer(cfg Config, router *rpc.Router, peers *PeerManager) *Server {
	cfg.sanitize()
	srv := &Server{
		Config: cfg,
		router: router,
		peers:  peers,
		local: localNode{
			id:         router.Self(),
			name:       cfg.Name,
			role:       cfg.Role,
			instanceID: uuid.New(),
			maxPing:    cfg.Monitor.MaxWaitTime,
		},
		log:     cfg.Logger.New("self", router.Self()),
		inbound: rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		dialer: &websocket.Dialer{
			ReadBufferSize:   wsReadBuffer,
			WriteBufferSize:  wsWriteBuffer,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		supervisors: make(map[string]*supervisor),
	}
	srv.local.maxRAM, srv.local.maxStorage = hostResources(cfg.StorageDir, srv.log)
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsReadBuffer,
		WriteBufferSize: wsWriteBuffer,
		CheckOrigin:     originValidator(cfg.WSOrigins, srv.log),
	}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	return srv
}

// Self returns the id of the local node.
func (srv *Server) Self() common.NodeID {
	return srv.local.id
}

// InstanceID returns the id announced in outbound handshakes. It changes
// with every process start.
func (srv *Server) InstanceID() uuid.UUID {
	return srv.local.instanceID
}

// Peers returns the peer manager.
func (srv *Server) Peers() *PeerManager {
	return srv.peers
}

// ServeHTTP upgrades the request to a websocket and runs the connection.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if srv.ctx.Err() != nil {
		http.Error(w, errServerStopped.Error(), http.StatusServiceUnavailable)
		return
	}
	if !srv.inbound.Allow() {
		inboundThrottledCounter.Inc(1)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Debug("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}
	inboundConnectCount.Inc(1)
	if _, err := srv.SetupConn(conn, true, r.RemoteAddr); err != nil {
		srv.log.Debug("Rejected inbound connection", "addr", r.RemoteAddr, "err", err)
	}
}

// Dial connects to the node listening at addr. addr is either host:port or
// a ws:// URL.
func (srv *Server) Dial(ctx context.Context, addr string) (*Peer, error) {
	conn, resp, err := srv.dialer.DialContext(ctx, dialURL(addr), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		dialFailCounter.Inc(1)
		return nil, err
	}
	outboundConnectCount.Inc(1)
	return srv.SetupConn(conn, false, addr)
}

func dialURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "ws://" + addr + WSPath
}

// SetupConn runs the handshake on a fresh connection and, when it succeeds,
// registers the peer with the router and starts serving it. The connection
// is closed on failure.
func (srv *Server) SetupConn(conn frameConn, inbound bool, addr string) (*Peer, error) {
	info, err := srv.local.handshake(conn, inbound, srv.HandshakeTimeout)
	if err != nil {
		handshakeFailCounter.Inc(1)
		msg := websocket.FormatCloseMessage(closeCode(err), closeText(err))
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		conn.Close()
		return nil, err
	}
	info.PeerAddr, info.Inbound = addr, inbound

	srv.mu.Lock()
	if srv.ctx.Err() != nil {
		srv.mu.Unlock()
		conn.Close()
		return nil, errServerStopped
	}
	srv.wg.Add(1)
	srv.mu.Unlock()

	p := newPeer(conn, info, srv.router, &srv.Config)
	srv.router.AddEndpoint(p.ID(), p)
	if old := srv.peers.add(p); old != nil {
		p.log.Debug("Replacing existing connection", "old", old.info.PeerAddr)
		go old.Disconnect(errReplaced)
	}
	p.log.Debug("Peer connected", "inbound", inbound, "name", info.NodeName, "role", info.Role)

	go func() {
		defer srv.wg.Done()
		p.run(srv.ctx)
		srv.peers.remove(p, p.err)
		p.log.Debug("Peer disconnected", "err", p.err)
	}()
	return p, nil
}

// DropPeer closes the connection to a node. It reports whether the node
// was connected.
func (srv *Server) DropPeer(id common.NodeID) bool {
	p := srv.peers.peer(id)
	if p == nil {
		return false
	}
	p.Disconnect(errRequested)
	return true
}

// Connect keeps a connection to addr, re-dialing it whenever it is down.
func (srv *Server) Connect(addr string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if _, ok := srv.supervisors[addr]; ok || srv.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(srv.ctx)
	s := &supervisor{addr: addr, cancel: cancel, done: make(chan struct{})}
	srv.supervisors[addr] = s

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.supervise(ctx, s)
	}()
}

// Disconnect stops supervising addr and closes its connection.
func (srv *Server) Disconnect(addr string) {
	srv.mu.Lock()
	s, ok := srv.supervisors[addr]
	delete(srv.supervisors, addr)
	srv.mu.Unlock()

	if ok {
		s.cancel()
		<-s.done
	}
}

// Connected returns the supervised addresses that currently have a live
// connection.
func (srv *Server) Connected() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	var addrs []string
	for addr, s := range srv.supervisors {
		if s.connected() {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)
	return addrs
}

// Supervised returns all supervised addresses.
func (srv *Server) Supervised() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	addrs := make([]string, 0, len(srv.supervisors))
	for addr := range srv.supervisors {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Stop closes all connections and waits for them to shut down.
func (srv *Server) Stop() {
	srv.mu.Lock()
	srv.cancel()
	srv.supervisors = make(map[string]*supervisor)
	srv.mu.Unlock()
	srv.wg.Wait()
}

// supervisor keeps one outbound connection alive.
type supervisor struct {
	addr   string
	cancel context.CancelFunc
	done   chan struct{}
	peer   atomic.Pointer[Peer]
}

func (s *supervisor) connected() bool {
	p := s.peer.Load()
	if p == nil {
		return false
	}
	select {
	case <-p.Done():
		return false
	default:
		return true
	}
}

func (srv *Server) supervise(ctx context.Context, s *supervisor) {
	defer close(s.done)
	log := srv.log.New("addr", s.addr)

	for {
		if !s.connected() {
			dctx, cancel := context.WithTimeout(ctx, srv.HandshakeTimeout)
			p, err := srv.Dial(dctx, s.addr)
			cancel()
			if err != nil {
				log.Debug("Dial failed", "err", err)
			} else {
				s.peer.Store(p)
			}
		}
		select {
		case <-ctx.Done():
			if p := s.peer.Load(); p != nil {
				p.Disconnect(errRequested)
			}
			return
		case <-srv.Clock.After(srv.RedialInterval):
		}
	}
}

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
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/julienschmidt/httprouter"
)

// debugEndpoint lets HTTP clients send raw JSON to local destinations. It
// poses as a remote node: requests are routed with a random loopback node
// id as sender, and the replies to that node are caught by the endpoint
// itself.
type debugEndpoint struct {
	router  *rpc.Router
	nodeID  common.NodeID
	timeout time.Duration
	log     log.Logger

	mu      sync.Mutex
	waiting map[rpc.DestinationID]chan rpc.Result
}

func newDebugEndpoint(router *rpc.Router, timeout time.Duration, logger log.Logger) *debugEndpoint {
	d := &debugEndpoint{
		router:  router,
		nodeID:  common.RandomNodeID(),
		timeout: timeout,
		log:     logger,
		waiting: make(map[rpc.DestinationID]chan rpc.Result),
	}
	router.AddEndpoint(d.nodeID, d)
	return d
}

// Send implements rpc.Transport. It receives the replies to debug requests.
func (d *debugEndpoint) Send(ctx context.Context, env *rpc.Envelope) error {
	d.mu.Lock()
	ch, ok := d.waiting[env.Destination]
	delete(d.waiting, env.Destination)
	d.mu.Unlock()

	if !ok {
		d.log.Debug("Dropping unexpected debug reply", "dest", env.Destination, "status", env.Status)
		return nil
	}
	ch <- env.Result()
	return nil
}

// call routes body to dest and waits for the reply.
func (d *debugEndpoint) call(ctx context.Context, dest rpc.DestinationID, body string) (rpc.Result, error) {
	replyTo := rpc.GenDestinationID()
	ch := make(chan rpc.Result, 1)
	d.mu.Lock()
	d.waiting[replyTo] = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.waiting, replyTo)
		d.mu.Unlock()
	}()

	d.router.Route(ctx, rpc.RouteMessage[string]{
		MsgID:       rpc.NewMessageID(),
		Sender:      d.nodeID,
		Destination: dest,
		ReplyTo:     replyTo,
		Ts:          uint64(time.Now().Unix()),
		Body:        body,
	})
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return rpc.Result{}, ctx.Err()
	}
}

// serve handles POST /m/:destination.
func (d *debugEndpoint) serve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseUint(ps.ByName("destination"), 10, 32)
	if err != nil {
		http.Error(w, "invalid destination: "+err.Error(), http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
	defer cancel()

	res, err := d.call(ctx, rpc.PublicDestination(uint32(id)), string(body))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "timeout", http.StatusGatewayTimeout)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case res.Err != nil && res.Err.Kind == rpc.NoDestination:
		http.Error(w, res.Err.Error(), http.StatusNotFound)
	case res.Err != nil:
		http.Error(w, res.Err.Error(), http.StatusBadRequest)
	default:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, res.Payload)
	}
}

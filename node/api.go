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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/metrics"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/golemfactory/golem-unlimited/rpc"
	"github.com/julienschmidt/httprouter"
)

// SendToRequest is the body of POST /peer/send-to.
type SendToRequest struct {
	NodeID        common.NodeID   `json:"nodeId"`
	DestinationID uint32          `json:"destinationId"`
	Body          json.RawMessage `json:"body"`
}

// ConnectRequest is the body of POST /peer/connect and /peer/disconnect.
type ConnectRequest struct {
	Addr string `json:"addr"`
}

func (n *Node) routes() *httprouter.Router {
	mux := httprouter.New()
	mux.Handler(http.MethodGet, p2p.WSPath, n.server)
	mux.GET("/node", n.handleInfo)
	mux.GET("/peer", n.handlePeers)
	mux.POST("/peer/send-to", n.handleSendTo)
	mux.POST("/peer/connect", n.handleConnect)
	mux.POST("/peer/disconnect", n.handleDisconnect)
	mux.GET("/peer/:node/tags", n.handleTags)
	mux.PUT("/peer/:node/tags", n.handleAddTags)
	mux.DELETE("/peer/:node/tags", n.handleDeleteTags)
	mux.GET("/metrics", handleMetrics)
	if n.debug != nil {
		mux.POST("/m/:destination", n.debug.serve)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (n *Node) handleInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.Info())
}

func (n *Node) handlePeers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.peers.Peers())
}

func (n *Node) handleSendTo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req SendToRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Body) == 0 {
		req.Body = json.RawMessage("null")
	}
	ctx, cancel := context.WithTimeout(r.Context(), n.config.DebugCallTimeout)
	defer cancel()

	reply, err := n.replies.CallUntyped(ctx, req.NodeID, rpc.PublicDestination(req.DestinationID), req.Body)
	if err != nil {
		http.Error(w, err.Error(), callErrorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(reply)
}

// callErrorStatus maps call errors to HTTP status codes.
func callErrorStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, rpc.ErrNoDestination):
		return http.StatusNotFound
	case errors.Is(err, rpc.ErrParseBody), errors.Is(err, rpc.ErrGenBody):
		return http.StatusBadRequest
	default:
		var terr *rpc.TransportError
		if errors.As(err, &terr) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func (n *Node) handleConnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ConnectRequest
	if !readJSON(w, r, &req) {
		return
	}
	n.server.Connect(req.Addr)
	writeJSON(w, http.StatusOK, n.server.Supervised())
}

func (n *Node) handleDisconnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ConnectRequest
	if !readJSON(w, r, &req) {
		return
	}
	n.server.Disconnect(req.Addr)
	writeJSON(w, http.StatusOK, n.server.Supervised())
}

func nodeParam(w http.ResponseWriter, ps httprouter.Params) (common.NodeID, bool) {
	id, err := common.ParseNodeID(ps.ByName("node"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return id, false
	}
	return id, true
}

func (n *Node) handleTags(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := nodeParam(w, ps)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n.peers.Tags(id))
}

func (n *Node) handleAddTags(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n.updateTags(w, r, ps, n.peers.AddTags)
}

func (n *Node) handleDeleteTags(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n.updateTags(w, r, ps, n.peers.DeleteTags)
}

func (n *Node) updateTags(w http.ResponseWriter, r *http.Request, ps httprouter.Params, update func(common.NodeID, ...string) error) {
	id, ok := nodeParam(w, ps)
	if !ok {
		return
	}
	var tags []string
	if !readJSON(w, r, &tags) {
		return
	}
	if err := update(id, tags...); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, n.peers.Tags(id))
}

func handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	metrics.WriteJSONOnce(metrics.DefaultRegistry, w)
}

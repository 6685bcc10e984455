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
	"net/http"
	"time"

	"github.com/golemfactory/golem-unlimited/log"
	"github.com/rs/cors"
)

// apiBodyLimit caps request bodies of the HTTP API. Peer websocket frames are
// limited separately by the p2p server.
const apiBodyLimit = 5 * 1024 * 1024

// newHTTPHandlerStack puts body limiting, request logging and CORS in front
// of the API handler.
func newHTTPHandlerStack(srv http.Handler, corsOrigins []string, logger log.Logger) http.Handler {
	h := newCorsHandler(srv, corsOrigins)
	return &apiHandler{next: h, log: logger}
}

type apiHandler struct {
	next http.Handler
	log  log.Logger
}

func (h *apiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > apiBodyLimit {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, apiBodyLimit)
	start := time.Now()
	h.next.ServeHTTP(w, r)
	h.log.Trace("Served API request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
}

// newCorsHandler returns srv unchanged when no origins are configured, so
// browsers fall back to same-origin rules.
func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return srv
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	}).Handler(srv)
}

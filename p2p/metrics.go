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

// Contains the counters and gauges used by the networking layer.

package p2p

import (
	"github.com/golemfactory/golem-unlimited/metrics"
)

var (
	ingressFrameCounter     = metrics.NewRegisteredCounter("p2p/frames/in", nil)
	egressFrameCounter      = metrics.NewRegisteredCounter("p2p/frames/out", nil)
	inboundConnectCount     = metrics.NewRegisteredCounter("p2p/connects/in", nil)
	outboundConnectCount    = metrics.NewRegisteredCounter("p2p/connects/out", nil)
	handshakeFailCounter    = metrics.NewRegisteredCounter("p2p/handshake/failed", nil)
	dialFailCounter         = metrics.NewRegisteredCounter("p2p/dial/failed", nil)
	inboundThrottledCounter = metrics.NewRegisteredCounter("p2p/connects/throttled", nil)
	pingTimeoutCounter      = metrics.NewRegisteredCounter("p2p/ping/timeout", nil)
	protoErrorCounter       = metrics.NewRegisteredCounter("p2p/proto/error", nil)

	peerGauge = metrics.NewRegisteredGauge("p2p/peers", nil)
)

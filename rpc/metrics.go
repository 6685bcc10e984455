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
	"github.com/golemfactory/golem-unlimited/metrics"
)

var (
	routeMissCounter     = metrics.NewRegisteredCounter("rpc/route/miss", nil)
	replyMissCounter     = metrics.NewRegisteredCounter("rpc/reply/miss", nil)
	notConnectedCounter  = metrics.NewRegisteredCounter("rpc/emit/notconnected", nil)
	evictionCounter      = metrics.NewRegisteredCounter("rpc/endpoint/evicted", nil)
	lateReplyCounter     = metrics.NewRegisteredCounter("rpc/call/late", nil)
	canceledCallCounter  = metrics.NewRegisteredCounter("rpc/call/canceled", nil)
	remotingErrorCounter = metrics.NewRegisteredCounter("rpc/remoting/error", nil)
)

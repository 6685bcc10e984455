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
	"net/http"
	"net/url"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golemfactory/golem-unlimited/log"
)

// originValidator returns the upgrade check for inbound connections. A '*'
// accepts every origin. Requests without an Origin header come from other
// nodes rather than browsers and are always accepted.
func originValidator(allowedOrigins []string, logger log.Logger) func(*http.Request) bool {
	origins := mapset.NewSet[string]()
	allowAll := false

	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		if origin != "" {
			origins.Add(strings.ToLower(origin))
		}
	}
	if origins.Cardinality() == 0 {
		origins.Add("http://localhost")
		if hostname, err := os.Hostname(); err == nil {
			origins.Add("http://" + strings.ToLower(hostname))
		}
	}
	logger.Debug("Allowed origins for peer connections", "origins", origins.ToSlice())

	return func(req *http.Request) bool {
		if _, ok := req.Header["Origin"]; !ok {
			return true
		}
		origin := strings.ToLower(req.Header.Get("Origin"))
		if allowAll || originIsAllowed(origins, origin) {
			return true
		}
		logger.Warn("Rejected peer connection", "origin", origin)
		return false
	}
}

func originIsAllowed(allowed mapset.Set[string], origin string) bool {
	found := false
	allowed.Each(func(rule string) bool {
		found = ruleAllowsOrigin(rule, origin)
		return found
	})
	return found
}

// ruleAllowsOrigin matches origin against a rule. Parts left out of the rule
// match anything.
func ruleAllowsOrigin(rule, origin string) bool {
	rScheme, rHost, rPort, err := parseOrigin(rule)
	if err != nil {
		return false
	}
	oScheme, oHost, oPort, err := parseOrigin(origin)
	if err != nil {
		return false
	}
	return (rScheme == "" || rScheme == oScheme) &&
		(rHost == "" || rHost == oHost) &&
		(rPort == "" || rPort == oPort)
}

func parseOrigin(origin string) (scheme, host, port string, err error) {
	u, err := url.Parse(strings.ToLower(origin))
	if err != nil {
		return "", "", "", err
	}
	if strings.Contains(origin, "://") {
		return u.Scheme, u.Hostname(), u.Port(), nil
	}
	// host:port parses as scheme:opaque.
	host, port = u.Scheme, u.Opaque
	if host == "" {
		host = origin
	}
	return "", host, port, nil
}

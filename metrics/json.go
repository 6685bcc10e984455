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

package metrics

import (
	"encoding/json"
	"io"
)

// MarshalJSON returns a byte slice containing a JSON representation of all
// the metrics in the Registry.
func (r *StandardRegistry) MarshalJSON() ([]byte, error) {
	return json.Marshal(Snapshot(r))
}

// Snapshot returns the current values of all counters and gauges in r keyed
// by metric name.
func Snapshot(r Registry) map[string]int64 {
	data := make(map[string]int64)
	r.Each(func(name string, i interface{}) {
		switch metric := i.(type) {
		case Counter:
			data[name] = metric.Snapshot().Count()
		case Gauge:
			data[name] = metric.Snapshot().Value()
		}
	})
	return data
}

// WriteJSONOnce writes metrics from the given registry to the specified writer
// as a JSON object.
func WriteJSONOnce(r Registry, w io.Writer) error {
	return json.NewEncoder(w).Encode(Snapshot(r))
}

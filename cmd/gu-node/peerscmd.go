// Copyright 2026 The golem-unlimited Authors
// This file is part of golem-unlimited.
//
// golem-unlimited is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// golem-unlimited is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with golem-unlimited. If not, see <http://www.gnu.org/licenses/>.


package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var peersCommand = &cli.Command{
	Name:   "peers",
	Usage:  "Lists the peers of a running node",
	Flags:  []cli.Flag{apiFlag, timeoutFlag},
	Action: listPeers,
}

func listPeers(ctx *cli.Context) error {
	peers, err := fetchPeers(ctx.String(apiFlag.Name), ctx.Duration(timeoutFlag.Name))
	if err != nil {
		return err
	}
	printPeers(ctx.App.Writer, peers)
	return nil
}

func fetchPeers(api string, timeout time.Duration) ([]p2p.PeerInfo, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(apiURL(api) + "/peer")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var peers []p2p.PeerInfo
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		return nil, err
	}
	return peers, nil
}

func printPeers(w io.Writer, peers []p2p.PeerInfo) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Name", "Address", "Role", "Direction", "Tags"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range peers {
		dir := "outbound"
		if p.Inbound {
			dir = "inbound"
		}
		table.Append([]string{p.NodeID.String(), p.NodeName, p.PeerAddr, p.Role.String(), dir, strings.Join(p.Tags, ",")})
	}
	table.Render()
}

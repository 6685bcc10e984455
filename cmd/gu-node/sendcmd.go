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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/node"
	"github.com/urfave/cli/v2"
)

var (
	apiFlag = &cli.StringFlag{
		Name:  "api",
		Usage: "HTTP endpoint of the running node",
		Value: net.JoinHostPort(node.DefaultHTTPHost, strconv.Itoa(node.DefaultHubPort)),
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Time to wait for the reply",
		Value: time.Minute,
	}

	sendCommand = &cli.Command{
		Name:      "send",
		Usage:     "Sends a JSON request to a destination on a connected node",
		ArgsUsage: "<nodeid> <destination> [json]",
		Flags:     []cli.Flag{apiFlag, timeoutFlag},
		Description: `
The send command asks a running node to deliver a request to the given
destination on a node it is connected to, and prints the reply body.
The body defaults to null.`,
		Action: send,
	}
)

func send(ctx *cli.Context) error {
	if ctx.NArg() < 2 || ctx.NArg() > 3 {
		return errors.New("need node id and destination as arguments")
	}
	id, err := common.ParseNodeID(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	dest, err := strconv.ParseUint(ctx.Args().Get(1), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid destination: %v", err)
	}
	body := json.RawMessage("null")
	if ctx.NArg() == 3 {
		body = json.RawMessage(ctx.Args().Get(2))
		if !json.Valid(body) {
			return errors.New("request body is not valid JSON")
		}
	}
	reply, err := sendTo(ctx.String(apiFlag.Name), ctx.Duration(timeoutFlag.Name), node.SendToRequest{
		NodeID:        id,
		DestinationID: uint32(dest),
		Body:          body,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, string(reply))
	return nil
}

func sendTo(api string, timeout time.Duration, req node.SendToRequest) ([]byte, error) {
	blob, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(apiURL(api)+"/peer/send-to", "application/json", bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(reply)))
	}
	return reply, nil
}

func apiURL(api string) string {
	if strings.Contains(api, "://") {
		return api
	}
	return "http://" + api
}

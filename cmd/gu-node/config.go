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
	"fmt"
	"os"

	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/node"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
)

var (
	roleFlag = &cli.StringFlag{
		Name:  "role",
		Usage: "Node role: hub, provider or both",
	}
	nameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "Node name announced to peers",
	}
	httpHostFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP server listening interface",
	}
	httpPortFlag = &cli.IntFlag{
		Name:  "http.port",
		Usage: fmt.Sprintf("HTTP server listening port (default %d for hubs, %d for providers)", node.DefaultHubPort, node.DefaultProviderPort),
	}
	httpCorsFlag = &cli.StringSliceFlag{
		Name:  "http.corsdomain",
		Usage: "Domains from which to accept cross origin requests (browser enforced)",
	}
	wsOriginsFlag = &cli.StringSliceFlag{
		Name:  "ws.origins",
		Usage: "Origins from which to accept peer websocket connections",
	}
	peersFlag = &cli.StringSliceFlag{
		Name:  "peer",
		Usage: "Address of a node to keep connected (host:port), may be repeated",
	}
	noDebugFlag = &cli.BoolFlag{
		Name:  "nodebug",
		Usage: "Disable the /m/:destination debug endpoint",
	}

	nodeFlags = []cli.Flag{
		roleFlag,
		nameFlag,
		httpHostFlag,
		httpPortFlag,
		httpCorsFlag,
		wsOriginsFlag,
		peersFlag,
		noDebugFlag,
	}
)

var dumpConfigCommand = &cli.Command{
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[dumpfile]",
	Flags:       nodeFlags,
	Description: `The dumpconfig command shows configuration values.`,
	Action:      dumpConfig,
}

// makeConfig loads the configuration file, if any, and applies the
// command-line flags on top of it.
func makeConfig(ctx *cli.Context) (*node.Config, error) {
	cfg := node.DefaultConfig
	cfg.HTTPPort = -1
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := node.LoadConfig(file, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyNodeFlags(ctx, &cfg); err != nil {
		return nil, err
	}
	if cfg.HTTPPort == -1 {
		cfg.HTTPPort = node.DefaultPort(cfg.Role)
	}
	return &cfg, nil
}

func applyNodeFlags(ctx *cli.Context, cfg *node.Config) error {
	if ctx.IsSet(dataDirFlag.Name) {
		dir, err := homedir.Expand(ctx.String(dataDirFlag.Name))
		if err != nil {
			return err
		}
		cfg.DataDir = dir
	}
	if ctx.IsSet(roleFlag.Name) {
		role, err := wire.ParseRole(ctx.String(roleFlag.Name))
		if err != nil {
			return err
		}
		cfg.Role = role
	}
	if ctx.IsSet(nameFlag.Name) {
		cfg.Name = ctx.String(nameFlag.Name)
	}
	if ctx.IsSet(httpHostFlag.Name) {
		cfg.HTTPHost = ctx.String(httpHostFlag.Name)
	}
	if ctx.IsSet(httpPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(httpPortFlag.Name)
	}
	if ctx.IsSet(httpCorsFlag.Name) {
		cfg.HTTPCors = ctx.StringSlice(httpCorsFlag.Name)
	}
	if ctx.IsSet(wsOriginsFlag.Name) {
		cfg.WSOrigins = ctx.StringSlice(wsOriginsFlag.Name)
	}
	if ctx.IsSet(peersFlag.Name) {
		cfg.Peers = append(cfg.Peers, ctx.StringSlice(peersFlag.Name)...)
	}
	if ctx.IsSet(noDebugFlag.Name) {
		cfg.NoDebugAPI = ctx.Bool(noDebugFlag.Name)
	}
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := node.MarshalConfig(cfg)
	if err != nil {
		return err
	}
	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.WriteString("# Note: this config doesn't contain the node key.\n\n")
	dump.Write(out)
	return nil
}

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "Start the node",
	Flags:  nodeFlags,
	Action: runNode,
}

func runNode(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	cfg.Logger = log.Root()
	n, err := node.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	if err := n.Start(); err != nil {
		n.Close()
		return fmt.Errorf("failed to start node: %w", err)
	}
	go waitForInterrupt(n)
	if err := n.Wait(); err != nil {
		n.Close()
		return err
	}
	return nil
}

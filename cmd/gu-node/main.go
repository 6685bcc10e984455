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

// gu-node runs a node of the compute grid and talks to running nodes.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the node key and peer tags",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	logOriginsFlag = &cli.BoolFlag{
		Name:  "log.origins",
		Usage: "Print the file:line of the call site in terminal logs",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log.json",
		Usage: "Write the --log.file records as JSON instead of logfmt",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Also write logs to the given file, rotated at 100MB",
	}
)

var app = &cli.App{
	Name:                 "gu-node",
	Usage:                "Golem Unlimited node",
	Version:              p2p.ProtocolVersion,
	EnableBashCompletion: true,
	Flags: []cli.Flag{
		configFileFlag,
		dataDirFlag,
		verbosityFlag,
		logOriginsFlag,
		logFileFlag,
		logJSONFlag,
	},
	Commands: []*cli.Command{
		runCommand,
		keyCommand,
		sendCommand,
		peersCommand,
		dumpConfigCommand,
	},
	Before: setupLogging,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) error {
	var (
		output   io.Writer = os.Stderr
		usecolor           = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	)
	if usecolor && runtime.GOOS == "windows" {
		output = colorable.NewColorableStderr()
	}
	verbosity := ctx.Int(verbosityFlag.Name)
	if verbosity < 0 || verbosity > int(log.LvlTrace) {
		return fmt.Errorf("invalid verbosity %d", verbosity)
	}
	log.PrintOrigins(ctx.Bool(logOriginsFlag.Name))
	// Lvl values double as verbosities, except that 0 is silent rather than crit only.
	handler := log.DiscardHandler()
	if verbosity > 0 {
		handler = log.StreamHandler(output, log.TerminalFormat(usecolor))
		if file := ctx.String(logFileFlag.Name); file != "" {
			rotator := &lumberjack.Logger{
				Filename:   file,
				MaxSize:    100,
				MaxBackups: 10,
			}
			format := log.LogfmtFormat()
			if ctx.Bool(logJSONFlag.Name) {
				format = log.JSONFormat()
			}
			handler = log.MultiHandler(handler, log.StreamHandler(rotator, format))
		}
		handler = log.LvlFilterHandler(log.Lvl(verbosity), handler)
	}
	log.Root().SetHandler(handler)
	return nil
}

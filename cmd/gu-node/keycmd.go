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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golemfactory/golem-unlimited/node"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
)

var keyCommand = &cli.Command{
	Name:  "key",
	Usage: "Manage node keys",
	Subcommands: []*cli.Command{
		{
			Name:      "generate",
			Usage:     "Writes a new node key to keyfile and prints its node ID",
			ArgsUsage: "<keyfile>",
			Action:    generateKey,
		},
		{
			Name:      "id",
			Usage:     "Prints the node ID of keyfile, or of the data directory's key",
			ArgsUsage: "[keyfile]",
			Action:    printKeyID,
		},
	},
}

func generateKey(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("need key file as argument")
	}
	file := ctx.Args().First()
	if _, err := os.Stat(file); err == nil {
		return fmt.Errorf("key file %s already exists", file)
	}
	key, err := node.GenerateKey()
	if err != nil {
		return fmt.Errorf("could not generate key: %v", err)
	}
	if err := node.SaveKey(file, key); err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, node.KeyToNodeID(key))
	return nil
}

func printKeyID(ctx *cli.Context) error {
	var file string
	switch ctx.NArg() {
	case 0:
		dir, err := homedir.Expand(ctx.String(dataDirFlag.Name))
		if err != nil {
			return err
		}
		if dir == "" {
			dir = node.DefaultDataDir()
		}
		file = filepath.Join(dir, "nodekey")
	case 1:
		file = ctx.Args().First()
	default:
		return errors.New("too many arguments")
	}
	key, err := node.LoadKey(file)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, node.KeyToNodeID(key))
	return nil
}

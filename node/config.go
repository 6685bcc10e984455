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
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"
	"unicode"

	"github.com/golemfactory/golem-unlimited/log"
	"github.com/golemfactory/golem-unlimited/p2p"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
	"github.com/mitchellh/go-homedir"
	"github.com/naoina/toml"
)

const (
	DefaultHTTPHost     = "127.0.0.1"
	DefaultHubPort      = 61622
	DefaultProviderPort = 61621

	datadirNodeKey = "nodekey"
	datadirTags    = "tags"
)

// MonitorConfig holds the connection liveness settings.
type MonitorConfig struct {
	MaxWaitTime          time.Duration
	MaxNoInteractionTime time.Duration
	TickInterval         time.Duration
}

// Config represents a small collection of configuration values to fine tune
// the node. These values can be further extended by all registered services.
type Config struct {
	// DataDir is the file system folder the node should use for its key and
	// peer tags. Without it the node key is ephemeral and tags are kept in
	// memory.
	DataDir string `toml:",omitempty"`

	// Name is advertised to peers in the handshake.
	Name string `toml:",omitempty"`

	// Role is the role the node announces: hub, provider or both.
	Role wire.Role

	// HTTPHost is the host interface on which to serve peer connections and
	// the HTTP API.
	HTTPHost string `toml:",omitempty"`

	// HTTPPort is the TCP port of the HTTP server. Zero picks a random free
	// port, which is useful for ephemeral nodes.
	HTTPPort int `toml:",omitempty"`

	// HTTPCors is the Cross-Origin Resource Sharing header to send to
	// requesting clients.
	HTTPCors []string `toml:",omitempty"`

	// WSOrigins lists the origins allowed to open peer connections.
	WSOrigins []string `toml:",omitempty"`

	// Peers are the addresses the node keeps connected.
	Peers []string `toml:",omitempty"`

	Monitor MonitorConfig

	HandshakeTimeout time.Duration
	RedialInterval   time.Duration

	// DebugCallTimeout bounds calls made through the HTTP API.
	DebugCallTimeout time.Duration

	// NoDebugAPI disables the /m/ debug endpoint.
	NoDebugAPI bool `toml:",omitempty"`

	// Logger is a custom logger to use with the node.
	Logger log.Logger `toml:",omitempty"`
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	DataDir:  DefaultDataDir(),
	Role:     wire.RoleHub,
	HTTPHost: DefaultHTTPHost,
	HTTPPort: DefaultHubPort,
	Monitor: MonitorConfig{
		MaxWaitTime:          p2p.DefaultMonitorConfig.MaxWaitTime,
		MaxNoInteractionTime: p2p.DefaultMonitorConfig.MaxNoInteractionTime,
		TickInterval:         p2p.DefaultConfig.TickInterval,
	},
	HandshakeTimeout: p2p.DefaultConfig.HandshakeTimeout,
	RedialInterval:   p2p.DefaultConfig.RedialInterval,
	DebugCallTimeout: 30 * time.Second,
}

// DefaultDataDir is the default data directory to use for the databases and
// other persistence requirements.
func DefaultDataDir() string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".golem-unlimited")
}

// DefaultPort returns the well-known HTTP port of a role.
func DefaultPort(role wire.Role) int {
	if role == wire.RoleProvider {
		return DefaultProviderPort
	}
	return DefaultHubPort
}

// HTTPEndpoint resolves the HTTP endpoint based on the configured host
// interface and port.
func (c *Config) HTTPEndpoint() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// ResolvePath resolves path in the data directory. It returns "" for
// ephemeral nodes.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, path)
}

func (c *Config) p2pConfig() p2p.Config {
	return p2p.Config{
		Name: c.Name,
		Role: c.Role,
		Monitor: p2p.MonitorConfig{
			MaxWaitTime:          c.Monitor.MaxWaitTime,
			MaxNoInteractionTime: c.Monitor.MaxNoInteractionTime,
		},
		TickInterval:     c.Monitor.TickInterval,
		HandshakeTimeout: c.HandshakeTimeout,
		RedialInterval:   c.RedialInterval,
		WSOrigins:        c.WSOrigins,
		StorageDir:       c.DataDir,
		Logger:           c.Logger,
	}
}

// These settings ensure that TOML keys use the same names as Go struct
// fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		if deprecated(id) {
			log.Warn("Config field is deprecated and won't have an effect", "name", id)
			return nil
		}
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// deprecated lists fields older releases wrote which are accepted and
// ignored.
func deprecated(field string) bool {
	switch field {
	case "node.Config.ListenAddr", "node.Config.MaxPeers":
		return true
	default:
		return false
	}
}

// LoadConfig reads a TOML file into cfg. Fields missing from the file keep
// their current value.
func LoadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	var lerr *toml.LineError
	if errors.As(err, &lerr) {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// MarshalConfig renders cfg as TOML.
func MarshalConfig(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}

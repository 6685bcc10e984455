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
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/common/hexutil"
	"github.com/golemfactory/golem-unlimited/log"
	"golang.org/x/crypto/sha3"
)

var errInvalidKey = errors.New("invalid private key")

// GenerateKey creates a new node key.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// PubkeyToNodeID derives the node id of a public key: the last 20 bytes of
// the Keccak-256 hash of its uncompressed encoding.
func PubkeyToNodeID(pub *btcec.PublicKey) common.NodeID {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	var id common.NodeID
	copy(id[:], h.Sum(nil)[12:])
	return id
}

// KeyToNodeID returns the node id of a private key.
func KeyToNodeID(key *btcec.PrivateKey) common.NodeID {
	return PubkeyToNodeID(key.PubKey())
}

// HexToKey parses a hex encoded secp256k1 private key.
func HexToKey(s string) (*btcec.PrivateKey, error) {
	b, err := hexutil.Decode("0x" + strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidKey, err)
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: length %d, want %d", errInvalidKey, len(b), btcec.PrivKeyBytesLen)
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", errInvalidKey)
	}
	return key, nil
}

// LoadKey reads a hex encoded private key from file.
func LoadKey(file string) (*btcec.PrivateKey, error) {
	blob, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return HexToKey(string(blob))
}

// SaveKey writes key to file as hex. The file is readable by the owner only.
func SaveKey(file string, key *btcec.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	k := hex.EncodeToString(key.Serialize())
	return os.WriteFile(file, []byte(k), 0600)
}

// NodeKey retrieves the node key from the data directory, generating and
// storing a new one on first use. Nodes without a data directory get an
// ephemeral key.
func (c *Config) NodeKey() (*btcec.PrivateKey, error) {
	if c.DataDir == "" {
		return GenerateKey()
	}
	file := c.ResolvePath(datadirNodeKey)
	key, err := LoadKey(file)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("node key %s: %w", file, err)
	}
	if key, err = GenerateKey(); err != nil {
		return nil, err
	}
	if err := SaveKey(file, key); err != nil {
		return nil, err
	}
	log.Info("Generated node key", "file", file, "id", KeyToNodeID(key))
	return key, nil
}

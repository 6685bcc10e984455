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
	"encoding/json"
	"errors"
	"sort"

	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/metrics"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const openFileLimit = 16

var tagKeyPrefix = []byte("t")

// TagStore persists the tags assigned to nodes, connected or not.
type TagStore struct {
	db *leveldb.DB
}

// OpenTagStore opens the tag database at path, creating it if needed.
func OpenTagStore(path string) (*TagStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: openFileLimit,
	})
	if err != nil {
		return nil, err
	}
	return &TagStore{db: db}, nil
}

// NewMemoryTagStore creates a tag store that is not backed by disk.
func NewMemoryTagStore() *TagStore {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic(err) // memory storage can't fail to open
	}
	return &TagStore{db: db}
}

func tagKey(id common.NodeID) []byte {
	return append(append([]byte(nil), tagKeyPrefix...), id[:]...)
}

// Tags returns the sorted tags of a node.
func (s *TagStore) Tags(id common.NodeID) ([]string, error) {
	blob, err := s.db.Get(tagKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.GetOrRegisterCounter("p2p/tags/getfail", nil).Inc(1)
		return nil, err
	}
	var tags []string
	if err := json.Unmarshal(blob, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SetTags replaces the tags of a node. An empty list deletes the entry.
func (s *TagStore) SetTags(id common.NodeID, tags []string) error {
	if len(tags) == 0 {
		return s.db.Delete(tagKey(id), nil)
	}
	tags = append([]string(nil), tags...)
	sort.Strings(tags)
	blob, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	if err := s.db.Put(tagKey(id), blob, nil); err != nil {
		metrics.GetOrRegisterCounter("p2p/tags/putfail", nil).Inc(1)
		return err
	}
	return nil
}

// Each calls fn for every node with tags, in node id order.
func (s *TagStore) Each(fn func(id common.NodeID, tags []string) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(tagKeyPrefix), nil)
	defer it.Release()

	for it.Next() {
		id, err := common.BytesToNodeID(it.Key()[len(tagKeyPrefix):])
		if err != nil {
			continue
		}
		var tags []string
		if err := json.Unmarshal(it.Value(), &tags); err != nil {
			return err
		}
		if !fn(id, tags) {
			break
		}
	}
	return it.Error()
}

// Close releases the database.
func (s *TagStore) Close() error {
	return s.db.Close()
}

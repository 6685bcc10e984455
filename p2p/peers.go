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
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golemfactory/golem-unlimited/common"
	"github.com/golemfactory/golem-unlimited/event"
	"github.com/golemfactory/golem-unlimited/rpc/wire"
)

// PeerInfo describes a connected node.
type PeerInfo struct {
	NodeID     common.NodeID `json:"nodeId"`
	NodeName   string        `json:"nodeName,omitempty"`
	PeerAddr   string        `json:"peerAddr"`
	Role       wire.Role     `json:"role"`
	Version    string        `json:"version,omitempty"`
	OS         string        `json:"os,omitempty"`
	InstanceID string        `json:"instanceId,omitempty"`
	MaxRAM     uint64        `json:"maxRam,omitempty"`
	MaxStorage uint64        `json:"maxStorage,omitempty"`
	Inbound    bool          `json:"inbound"`
	Tags       []string      `json:"tags"`
}

// PeerEventType is the type of peer events emitted by a PeerManager.
type PeerEventType string

const (
	PeerEventTypeAdd  PeerEventType = "add"
	PeerEventTypeDrop PeerEventType = "drop"
)

// PeerEvent is an event emitted when peers are added to or dropped from a
// PeerManager.
type PeerEvent struct {
	Type  PeerEventType `json:"type"`
	Peer  PeerInfo      `json:"peer"`
	Error string        `json:"error,omitempty"`
}

// PeerManager keeps track of the connected peers and the tags assigned to
// nodes. Tags survive disconnects and, with a disk backed store, restarts.
type PeerManager struct {
	store *TagStore
	feed  event.FeedOf[PeerEvent]

	mu    sync.RWMutex
	peers map[common.NodeID]*Peer
	tags  map[common.NodeID]mapset.Set[string]
}

// NewPeerManager creates a manager that persists tags in store.
func NewPeerManager(store *TagStore) (*PeerManager, error) {
	pm := &PeerManager{
		store: store,
		peers: make(map[common.NodeID]*Peer),
		tags:  make(map[common.NodeID]mapset.Set[string]),
	}
	err := store.Each(func(id common.NodeID, tags []string) bool {
		pm.tags[id] = mapset.NewThreadUnsafeSet(tags...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return pm, nil
}

// add registers a connected peer and returns the connection it replaces,
// if any.
func (pm *PeerManager) add(p *Peer) (old *Peer) {
	pm.mu.Lock()
	old = pm.peers[p.ID()]
	pm.peers[p.ID()] = p
	info := pm.info(p)
	pm.mu.Unlock()

	if old == nil {
		peerGauge.Inc(1)
	}
	pm.feed.Send(PeerEvent{Type: PeerEventTypeAdd, Peer: info})
	return old
}

// remove drops p unless it was already replaced by a newer connection.
func (pm *PeerManager) remove(p *Peer, reason error) {
	pm.mu.Lock()
	if pm.peers[p.ID()] != p {
		pm.mu.Unlock()
		return
	}
	delete(pm.peers, p.ID())
	info := pm.info(p)
	pm.mu.Unlock()

	peerGauge.Dec(1)
	ev := PeerEvent{Type: PeerEventTypeDrop, Peer: info}
	if reason != nil {
		ev.Error = reason.Error()
	}
	pm.feed.Send(ev)
}

// info must be called with pm.mu held.
func (pm *PeerManager) info(p *Peer) PeerInfo {
	info := p.Info()
	info.Tags = pm.sortedTags(p.ID())
	return info
}

func (pm *PeerManager) sortedTags(id common.NodeID) []string {
	set, ok := pm.tags[id]
	if !ok {
		return []string{}
	}
	tags := set.ToSlice()
	sort.Strings(tags)
	return tags
}

// Peers returns the connected peers in node id order.
func (pm *PeerManager) Peers() []PeerInfo {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	infos := make([]PeerInfo, 0, len(pm.peers))
	for _, p := range pm.peers {
		infos = append(infos, pm.info(p))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].NodeID.Cmp(infos[j].NodeID) < 0
	})
	return infos
}

// Peer returns the info of a connected peer.
func (pm *PeerManager) Peer(id common.NodeID) (PeerInfo, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.peers[id]
	if !ok {
		return PeerInfo{}, false
	}
	return pm.info(p), true
}

func (pm *PeerManager) peer(id common.NodeID) *Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.peers[id]
}

// Len returns the number of connected peers.
func (pm *PeerManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Tags returns the sorted tags of a node.
func (pm *PeerManager) Tags(id common.NodeID) []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.sortedTags(id)
}

// AddTags assigns tags to a node and persists them.
func (pm *PeerManager) AddTags(id common.NodeID, tags ...string) error {
	return pm.updateTags(id, func(set mapset.Set[string]) {
		for _, tag := range tags {
			if tag != "" {
				set.Add(tag)
			}
		}
	})
}

// DeleteTags removes tags from a node and persists the result.
func (pm *PeerManager) DeleteTags(id common.NodeID, tags ...string) error {
	return pm.updateTags(id, func(set mapset.Set[string]) {
		for _, tag := range tags {
			set.Remove(tag)
		}
	})
}

func (pm *PeerManager) updateTags(id common.NodeID, fn func(mapset.Set[string])) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	set, ok := pm.tags[id]
	if ok {
		set = set.Clone()
	} else {
		set = mapset.NewThreadUnsafeSet[string]()
	}
	fn(set)
	if err := pm.store.SetTags(id, set.ToSlice()); err != nil {
		return err
	}
	if set.Cardinality() == 0 {
		delete(pm.tags, id)
	} else {
		pm.tags[id] = set
	}
	return nil
}

// SubscribeEvents subscribes ch to peer add and drop events.
func (pm *PeerManager) SubscribeEvents(ch chan<- PeerEvent) event.Subscription {
	return pm.feed.Subscribe(ch)
}

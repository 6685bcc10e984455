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

package event

import (
	"sync"
	"sync/atomic"
)

// FeedOf delivers values of type T to every subscribed channel. Sends are
// serialized and each one blocks until all subscribers have taken the value
// or unsubscribed. The zero value is ready to use.
type FeedOf[T any] struct {
	sendMu sync.Mutex

	mu   sync.Mutex
	subs map[*feedOfSub[T]]struct{}
}

type feedOfSub[T any] struct {
	feed    *FeedOf[T]
	channel chan<- T
	quit    chan struct{}
	once    sync.Once
	err     chan error
}

// Subscribe adds a channel to the feed. Slow subscribers hold up every
// other subscriber, so the channel should be buffered.
func (f *FeedOf[T]) Subscribe(channel chan<- T) Subscription {
	sub := &feedOfSub[T]{
		feed:    f,
		channel: channel,
		quit:    make(chan struct{}),
		err:     make(chan error),
	}
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[*feedOfSub[T]]struct{})
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

// Send delivers value to all subscribers and returns how many received it.
func (f *FeedOf[T]) Send(value T) int {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	f.mu.Lock()
	subs := make([]*feedOfSub[T], 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	var (
		sent int32
		wg   sync.WaitGroup
	)
	wg.Add(len(subs))
	for _, sub := range subs {
		go func(sub *feedOfSub[T]) {
			defer wg.Done()
			select {
			case sub.channel <- value:
				atomic.AddInt32(&sent, 1)
			case <-sub.quit:
			}
		}(sub)
	}
	wg.Wait()
	return int(sent)
}

func (sub *feedOfSub[T]) Unsubscribe() {
	sub.once.Do(func() {
		sub.feed.mu.Lock()
		delete(sub.feed.subs, sub)
		sub.feed.mu.Unlock()
		close(sub.quit)
		close(sub.err)
	})
}

func (sub *feedOfSub[T]) Err() <-chan error {
	return sub.err
}

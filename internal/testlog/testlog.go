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

// Package testlog routes log output into the log of a running test.
package testlog

import (
	"sync"
	"testing"

	"github.com/golemfactory/golem-unlimited/log"
)

// logger writes through t.Logf with t.Helper set, so that the file and line
// shown by the test runner are the ones of the logging call. Records are
// buffered by the handler and flushed by the emitting goroutine.
type logger struct {
	t  testing.TB
	l  log.Logger
	mu *sync.Mutex
	h  *recordBuffer
}

type recordBuffer struct {
	records []*log.Record
	fmt     log.Format
	done    bool
}

func (b *recordBuffer) Log(r *log.Record) error {
	b.records = append(b.records, r)
	return nil
}

// Logger returns a logger writing records up to level into the log of t.
// Anything logged after t has finished is dropped, as t.Logf would panic.
func Logger(t testing.TB, level log.Lvl) log.Logger {
	l := &logger{
		t:  t,
		l:  log.New(),
		mu: new(sync.Mutex),
		h:  &recordBuffer{fmt: log.TerminalFormat(false)},
	}
	l.l.SetHandler(log.LvlFilterHandler(level, l.h))
	t.Cleanup(func() {
		l.mu.Lock()
		l.h.done = true
		l.mu.Unlock()
	})
	return l
}

func (l *logger) emit(write func(string, ...interface{}), msg string, ctx []interface{}) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	write(msg, ctx...)
	if !l.h.done {
		for _, r := range l.h.records {
			l.t.Logf("%s", l.h.fmt.Format(r))
		}
	}
	l.h.records = l.h.records[:0]
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.t.Helper(); l.emit(l.l.Trace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.t.Helper(); l.emit(l.l.Debug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.t.Helper(); l.emit(l.l.Info, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.t.Helper(); l.emit(l.l.Warn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.t.Helper(); l.emit(l.l.Error, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.t.Helper(); l.emit(l.l.Crit, msg, ctx) }

func (l *logger) New(ctx ...interface{}) log.Logger {
	return &logger{t: l.t, l: l.l.New(ctx...), mu: l.mu, h: l.h}
}

func (l *logger) SetHandler(h log.Handler) {
	l.l.SetHandler(h)
}

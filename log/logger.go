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

package log

import (
	"fmt"
	"os"
	"time"

	"github.com/go-stack/stack"
)

const (
	timeKey  = "t"
	lvlKey   = "lvl"
	msgKey   = "msg"
	errorKey = "LOG_ERROR"
)

// Lvl is a log level. Lower values are more severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlNames = [...]struct{ short, aligned string }{
	LvlCrit:  {"crit", "CRIT "},
	LvlError: {"eror", "ERROR"},
	LvlWarn:  {"warn", "WARN "},
	LvlInfo:  {"info", "INFO "},
	LvlDebug: {"dbug", "DEBUG"},
	LvlTrace: {"trce", "TRACE"},
}

// AlignedString returns the five character upper case name of l.
func (l Lvl) AlignedString() string {
	if l < LvlCrit || l > LvlTrace {
		return "?????"
	}
	return lvlNames[l].aligned
}

func (l Lvl) String() string {
	if l < LvlCrit || l > LvlTrace {
		return fmt.Sprintf("lvl(%d)", int(l))
	}
	return lvlNames[l].short
}

// LvlFromString parses a level name as accepted on the command line.
func LvlFromString(s string) (Lvl, error) {
	switch s {
	case "trace", "trce":
		return LvlTrace, nil
	case "debug", "dbug":
		return LvlDebug, nil
	case "info":
		return LvlInfo, nil
	case "warn":
		return LvlWarn, nil
	case "error", "eror":
		return LvlError, nil
	case "crit":
		return LvlCrit, nil
	}
	return LvlDebug, fmt.Errorf("unknown level: %v", s)
}

// Record is a single log entry handed to a Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Logger writes messages with key/value context to a Handler.
type Logger interface {
	// New returns a child logger that prepends ctx to every record. The child
	// follows later SetHandler calls on its parent.
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs and exits the process.
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

// write is called two frames below the logging call site.
func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.h.Log(&Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  appendContext(l.ctx, ctx),
		Call: stack.Caller(2),
	})
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{ctx: appendContext(l.ctx, ctx), h: new(swapHandler)}
	child.SetHandler(l.h)
	return child
}

func (l *logger) SetHandler(h Handler) { l.h.Swap(h) }

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

// appendContext returns a fresh slice holding prefix followed by suffix. An
// odd suffix is padded so that keys and values stay paired.
func appendContext(prefix, suffix []interface{}) []interface{} {
	if len(suffix)%2 != 0 {
		suffix = append(suffix, nil, errorKey, "Normalized odd number of arguments by adding nil")
	}
	ctx := make([]interface{}, 0, len(prefix)+len(suffix))
	return append(append(ctx, prefix...), suffix...)
}

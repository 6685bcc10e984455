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
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeFrames(t *testing.T) {
	c1, c2 := Pipe()
	defer c1.Close()

	require.NoError(t, c1.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	require.NoError(t, c2.WriteMessage(websocket.TextMessage, []byte("hi")))

	typ, data, err := c2.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.Equal(t, []byte{1, 2, 3}, data)

	typ, data, err = c1.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, []byte("hi"), data)
}

func TestPipePingPong(t *testing.T) {
	c1, c2 := Pipe()
	defer c1.Close()

	pong := make(chan string, 1)
	c1.SetPongHandler(func(data string) error {
		pong <- data
		return nil
	})
	require.NoError(t, c1.WriteControl(websocket.PingMessage, []byte("nonce"), time.Time{}))
	require.NoError(t, c1.WriteMessage(websocket.BinaryMessage, []byte{1}))

	// c2 answers the ping while reading.
	_, data, err := c2.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	require.NoError(t, c2.WriteMessage(websocket.BinaryMessage, []byte{2}))
	_, data, err = c1.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
	assert.Equal(t, "nonce", <-pong)
}

func TestPipeClose(t *testing.T) {
	c1, c2 := Pipe()

	msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, "bad frame")
	require.NoError(t, c1.WriteControl(websocket.CloseMessage, msg, time.Time{}))
	require.NoError(t, c1.Close())

	_, _, err := c2.ReadMessage()
	var cerr *websocket.CloseError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, websocket.CloseProtocolError, cerr.Code)
	assert.Equal(t, "bad frame", cerr.Text)

	_, _, err = c2.ReadMessage()
	assert.Equal(t, ErrPipeClosed, err)
	assert.Equal(t, ErrPipeClosed, c2.WriteMessage(websocket.BinaryMessage, nil))
}

func TestPipeReadDeadline(t *testing.T) {
	c1, _ := Pipe()
	defer c1.Close()

	c1.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, _, err := c1.ReadMessage()
	assert.Equal(t, errPipeTimeout, err)
}

package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterload/util"
)

func TestSocketHub(t *testing.T) {
	cache := util.NewCache()
	cache.Add("garage.runningPower", util.Param{Meter: "garage", Key: "runningPower", Val: 6900.0})

	hub := NewSocketHub()
	in := make(chan util.Param)
	go hub.Run(in, cache)

	srv := httptest.NewServer(socketHandler(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// cached parameters are replayed on connect
	var p util.Param
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, "garage", p.Meter)
	assert.Equal(t, "runningPower", p.Key)
	assert.Equal(t, 6900.0, p.Val)

	// live updates are broadcast
	in <- util.Param{Meter: "garage", Key: "sampleCount", Val: 42}

	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, "sampleCount", p.Key)
	assert.Equal(t, 42.0, p.Val)
}

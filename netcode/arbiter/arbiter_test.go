package arbiter

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Abcight/lockstep/netcode/wire"
)

func newPending() [PlayerCount]map[uint32]uint8 {
	var p [PlayerCount]map[uint32]uint8
	for i := range p {
		p[i] = make(map[uint32]uint8)
	}
	return p
}

func TestIngestDropsStaleInputs(t *testing.T) {
	a := New(DefaultConfig())
	pending := newPending()
	a.inbound <- inboundInput{playerID: 0, tick: 5, bits: 1}

	a.ingest(&pending, 10) // serverTick already past 5

	_, ok := pending[0][5]
	require.False(t, ok)
}

func TestIngestDropsOutOfWindowInputs(t *testing.T) {
	cfg := DefaultConfig()
	a := New(cfg)
	pending := newPending()
	a.inbound <- inboundInput{playerID: 0, tick: 100 + cfg.DMax + 1, bits: 1}

	a.ingest(&pending, 100)

	_, ok := pending[0][100+cfg.DMax+1]
	require.False(t, ok)
}

func TestIngestFirstSubmissionWins(t *testing.T) {
	a := New(DefaultConfig())
	pending := newPending()
	a.inbound <- inboundInput{playerID: 0, tick: 7, bits: 1}
	a.ingest(&pending, 0)

	a.inbound <- inboundInput{playerID: 0, tick: 7, bits: 99}
	a.ingest(&pending, 0)

	require.Equal(t, uint8(1), pending[0][7])
}

func TestIngestAcceptsWithinWindow(t *testing.T) {
	cfg := DefaultConfig()
	a := New(cfg)
	pending := newPending()
	a.inbound <- inboundInput{playerID: 1, tick: 10 + cfg.DMax, bits: 5}

	a.ingest(&pending, 10)

	require.Equal(t, uint8(5), pending[1][10+cfg.DMax])
}

func TestRunHandshakeAssignsStableIdsAndBroadcastsTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartDelay = 20 * time.Millisecond
	a := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const addr = "127.0.0.1:18743"
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx, addr) }()

	time.Sleep(20 * time.Millisecond) // let the listener come up

	c0, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c0.Close()
	c1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c1.Close()

	payload, err := wire.ReadFrame(c0)
	require.NoError(t, err)
	msg, err := wire.DecodeServerMessage(payload)
	require.NoError(t, err)
	require.NotNil(t, msg.AssignStart)
	require.Equal(t, uint8(0), msg.AssignStart.PlayerID)

	payload, err = wire.ReadFrame(c1)
	require.NoError(t, err)
	msg, err = wire.DecodeServerMessage(payload)
	require.NoError(t, err)
	require.Equal(t, uint8(1), msg.AssignStart.PlayerID)

	// First broadcast tick must be 0 and monotonically increasing.
	payload, err = wire.ReadFrame(c0)
	require.NoError(t, err)
	msg, err = wire.DecodeServerMessage(payload)
	require.NoError(t, err)
	require.NotNil(t, msg.TickInputs)
	require.Equal(t, uint32(0), msg.TickInputs.Tick)

	payload, err = wire.ReadFrame(c0)
	require.NoError(t, err)
	msg, err = wire.DecodeServerMessage(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(1), msg.TickInputs.Tick)

	cancel()
	<-runErr
}

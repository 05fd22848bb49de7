package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Abcight/lockstep/netcode/netio"
	"github.com/Abcight/lockstep/netcode/sim"
	"github.com/Abcight/lockstep/netcode/wire"
)

func newTestPredictor() (*Predictor, chan netio.NetEvent, chan netio.SendInputCmd) {
	events := make(chan netio.NetEvent, 16)
	outCmds := make(chan netio.SendInputCmd, 256)
	p := New(Config{TPS: 60, LeadTicks: 4, DMax: 32, History: 64, CatchupBudget: 2000},
		events, outCmds, func() uint8 { return 0 }, false)
	return p, events, outCmds
}

func TestWaitingBeforeHandshake(t *testing.T) {
	p, _, _ := newTestPredictor()
	frame := p.Step(time.Now())
	require.True(t, frame.Waiting)
}

func TestAssignStartBypassesDelayAndUnblocksSim(t *testing.T) {
	p, events, _ := newTestPredictor()
	p.SetDelay(5000) // large artificial delay must not hold up the handshake

	now := time.Now()
	events <- netio.NetEvent{AssignStart: &wire.AssignStart{PlayerID: 0, StartAfterMs: 0}}

	frame := p.Step(now)
	require.False(t, frame.Waiting)
	require.Equal(t, 0, frame.MyID)
}

func TestPredictsThenRollsBackOnMismatch(t *testing.T) {
	p, events, _ := newTestPredictor()

	start := time.Now()
	events <- netio.NetEvent{AssignStart: &wire.AssignStart{PlayerID: 0, StartAfterMs: 0}}
	p.Step(start)

	// Advance one frame so tick 0 is predicted with both inputs zero.
	next := start.Add(20 * time.Millisecond)
	frame := p.Step(next)
	require.GreaterOrEqual(t, frame.LocalTick, uint32(1))

	// Server disagrees: player 1 actually pressed jump on tick 0.
	events <- netio.NetEvent{TickInputs: &wire.TickInputs{Tick: 0, Inputs: [2]uint8{0, uint8(sim.Jump)}}}

	after := next.Add(20 * time.Millisecond)
	frame = p.Step(after)

	expected := sim.Step(sim.New(), [2]uint8{0, uint8(sim.Jump)})
	require.Equal(t, expected, frame.State, "resimulation after rollback must converge to the authoritative result")
}

func TestRollbackHorizonExceededIsSilentlyDropped(t *testing.T) {
	p, events, _ := newTestPredictor()
	p.cfg.History = 4 // force a tiny ring so stale snapshots evict quickly

	start := time.Now()
	events <- netio.NetEvent{AssignStart: &wire.AssignStart{PlayerID: 0, StartAfterMs: 0}}
	p.Step(start)

	// Simulate far enough forward that tick 0's snapshot slot is long overwritten.
	for i := 1; i <= 20; i++ {
		p.Step(start.Add(time.Duration(i) * 20 * time.Millisecond))
	}

	events <- netio.NetEvent{TickInputs: &wire.TickInputs{Tick: 0, Inputs: [2]uint8{1, 1}}}
	require.NotPanics(t, func() {
		p.Step(start.Add(21 * 20 * time.Millisecond))
	})
}

func TestOutboundInputIsEmittedForSimulatedTick(t *testing.T) {
	p, events, outCmds := newTestPredictor()

	start := time.Now()
	events <- netio.NetEvent{AssignStart: &wire.AssignStart{PlayerID: 0, StartAfterMs: 0}}
	p.Step(start)
	p.Step(start.Add(20 * time.Millisecond))
	// Outbound commands enqueued during a catch-up burst are flushed on the
	// following call, once their (possibly zero) artificial delay elapses.
	p.Step(start.Add(40 * time.Millisecond))

	select {
	case cmd := <-outCmds:
		require.Equal(t, uint32(0), cmd.Tick)
	default:
		t.Fatal("expected an outbound input command")
	}
}

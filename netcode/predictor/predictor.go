// Package predictor implements the client side of the lockstep protocol
// (spec §4.F): local prediction of un-acknowledged ticks, snapshot/replay
// rollback the instant a server-authoritative tick disagrees with what
// was predicted, and the pacing/interpolation glue that keeps local tick
// converging on the server's intentional lag without ever stepping the
// simulation off its fixed timestep.
package predictor

import (
	"time"

	"github.com/Abcight/lockstep/internal/metrics"
	"github.com/Abcight/lockstep/netcode/clock"
	"github.com/Abcight/lockstep/netcode/delay"
	"github.com/Abcight/lockstep/netcode/netio"
	"github.com/Abcight/lockstep/netcode/sim"
	"github.com/Abcight/lockstep/netcode/wire"
)

// Config carries the process-wide constants the predictor needs (spec §6).
type Config struct {
	TPS           uint32
	LeadTicks     uint32
	DMax          uint32
	History       int
	CatchupBudget uint32
}

// DefaultConfig returns the spec §6 defaults.
func DefaultConfig() Config {
	return Config{
		TPS:           clock.TPS,
		LeadTicks:     clock.LeadTicks,
		DMax:          clock.DMax,
		History:       clock.History,
		CatchupBudget: clock.CatchupBudget,
	}
}

// Frame is what a renderer needs once per drawn frame.
type Frame struct {
	Waiting    bool
	MyID       int
	LocalTick  uint32
	ServerTick uint32
	State      sim.State
	PrevState  sim.State
	Alpha      float32
}

type authSlot struct {
	valid  bool
	tick   uint32
	inputs [2]uint8
}

type usedSlot struct {
	valid  bool
	tick   uint32
	inputs [2]uint8
}

type snapSlot struct {
	valid bool
	tick  uint32
	state sim.State
}

// Predictor holds everything one client connection needs to predict,
// detect mismatches, and roll back. It is not safe for concurrent calls;
// Step is meant to be driven by a single render/update loop.
type Predictor struct {
	cfg        Config
	malicious  bool
	localInput func() uint8

	myID             int
	simStartAt       *time.Time
	latestServerTick uint32

	authInputs   []authSlot
	usedInputs   []usedSlot
	stateHistory []snapSlot

	state      sim.State
	renderPrev sim.State
	localTick  uint32
	lastRemote [2]uint8

	pendingRollback *uint32
	accumulator     float32
	lastFrameAt     time.Time

	inQueue  *delay.Queue[netio.NetEvent]
	outQueue *delay.Queue[netio.SendInputCmd]
	delayMs  delay.Scalar

	events  <-chan netio.NetEvent
	outCmds chan<- netio.SendInputCmd
}

// New constructs a Predictor. localInput is polled once per predicted
// tick to read this client's own current input bits (e.g. from a keyboard
// state snapshot); malicious enables the local-only render tamper used to
// demonstrate that the trust boundary holds (spec §8 property 8, §10).
func New(cfg Config, events <-chan netio.NetEvent, outCmds chan<- netio.SendInputCmd, localInput func() uint8, malicious bool) *Predictor {
	return &Predictor{
		cfg:          cfg,
		malicious:    malicious,
		localInput:   localInput,
		authInputs:   make([]authSlot, cfg.History),
		usedInputs:   make([]usedSlot, cfg.History),
		stateHistory: make([]snapSlot, cfg.History),
		state:        sim.New(),
		renderPrev:   sim.New(),
		inQueue:      delay.NewQueue[netio.NetEvent](),
		outQueue:     delay.NewQueue[netio.SendInputCmd](),
		events:       events,
		outCmds:      outCmds,
		lastFrameAt:  time.Now(),
	}
}

// SetDelay adjusts the artificial inbound/outbound latency in milliseconds
// (spec §4.H). Safe to call from any goroutine.
func (p *Predictor) SetDelay(ms uint32) { p.delayMs.Set(ms) }

// Delay returns the current artificial latency setting in milliseconds.
func (p *Predictor) Delay() uint32 { return p.delayMs.Get() }

// Step advances the predictor by one rendered frame at wall-clock time
// now and returns what a renderer needs to draw. It performs, in order,
// exactly the sequence spec §4.F describes: schedule inbound events,
// deliver due ones, flush due outbound commands, check for the waiting
// state, apply a scheduled rollback, compute pacing, and simulate forward
// in a catch-up-bounded burst.
func (p *Predictor) Step(now time.Time) Frame {
	frameDt := now.Sub(p.lastFrameAt).Seconds()
	p.lastFrameAt = now

	p.drainInbound(now)
	p.deliverInbound(now)
	p.flushOutbound(now)

	if p.simStartAt == nil || now.Before(*p.simStartAt) {
		return Frame{Waiting: true, MyID: p.myID, LocalTick: p.localTick, ServerTick: p.latestServerTick}
	}

	p.applyPendingRollback()

	dt := 1.0 / float32(p.cfg.TPS)

	timeTick := clock.WallTick(*p.simStartAt, now, p.cfg.TPS)
	targetTick := timeTick
	expectedServerTick := clock.TargetTick(timeTick, p.cfg.LeadTicks)
	simRate := SimRate(p.localTick, expectedServerTick, p.cfg.LeadTicks)

	p.accumulator += float32(frameDt) * simRate

	var steps uint32
	for p.localTick < targetTick && steps < p.cfg.CatchupBudget &&
		(p.accumulator >= dt || p.localTick+1 < targetTick) {
		if p.accumulator < dt {
			p.accumulator = dt
		}
		p.simulateOneTick(now, expectedServerTick)
		steps++
	}
	metrics.ClientCatchupStepsLastFrame.Set(float64(steps))

	alpha := Alpha(p.accumulator, dt)

	return Frame{
		MyID:       p.myID,
		LocalTick:  p.localTick,
		ServerTick: p.latestServerTick,
		State:      p.state,
		PrevState:  p.renderPrev,
		Alpha:      alpha,
	}
}

func (p *Predictor) drainInbound(now time.Time) {
	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				return
			}
			if ev.AssignStart != nil {
				// The handshake always bypasses artificial delay (spec §4.H).
				p.inQueue.EnqueueImmediate(now, ev)
			} else {
				p.inQueue.Enqueue(now, p.delayMs.Get(), ev)
			}
		default:
			return
		}
	}
}

func (p *Predictor) deliverInbound(now time.Time) {
	for _, ev := range p.inQueue.Drain(now) {
		switch {
		case ev.AssignStart != nil:
			p.reset(ev.AssignStart, now)
		case ev.TickInputs != nil:
			p.applyTickInputs(ev.TickInputs)
		}
	}
}

func (p *Predictor) flushOutbound(now time.Time) {
	for _, cmd := range p.outQueue.Drain(now) {
		p.outCmds <- cmd
	}
}

// reset re-initializes prediction state on a fresh handshake, so a
// reconnect (or the first connect) starts from a clean slate (spec §3
// lifecycle, §4.F).
func (p *Predictor) reset(a *wire.AssignStart, now time.Time) {
	p.myID = int(a.PlayerID)
	p.localTick = 0
	p.latestServerTick = 0

	startAt := now.Add(time.Duration(a.StartAfterMs) * time.Millisecond)
	p.simStartAt = &startAt

	p.state = sim.New()
	p.renderPrev = p.state
	p.lastRemote = [2]uint8{}
	p.pendingRollback = nil
	p.accumulator = 0

	p.inQueue.Reset()
	p.outQueue.Reset()

	for i := range p.authInputs {
		p.authInputs[i] = authSlot{}
	}
	for i := range p.usedInputs {
		p.usedInputs[i] = usedSlot{}
	}
	for i := range p.stateHistory {
		p.stateHistory[i] = snapSlot{}
	}
}

// applyTickInputs records an authoritative tick and, if the client
// already simulated that tick with a different guess, schedules a
// rollback to the earliest mismatched tick (spec §4.F, §8 property 3).
func (p *Predictor) applyTickInputs(m *wire.TickInputs) {
	if m.Tick > p.latestServerTick {
		p.latestServerTick = m.Tick
	}

	idx := int(m.Tick) % p.cfg.History
	p.authInputs[idx] = authSlot{valid: true, tick: m.Tick, inputs: m.Inputs}
	p.lastRemote = m.Inputs

	if used := p.usedInputs[idx]; used.valid && used.tick == m.Tick && used.inputs != m.Inputs {
		if p.pendingRollback == nil || m.Tick < *p.pendingRollback {
			t := m.Tick
			p.pendingRollback = &t
		}
	}
}

// applyPendingRollback restores the saved snapshot for the earliest
// mismatched tick and rewinds localTick to it, so the catch-up loop below
// resimulates with the now-known-authoritative inputs. If the snapshot no
// longer exists (evicted by the ring buffer), the rollback is silently
// dropped — the horizon has been exceeded (spec §4.F edge case).
func (p *Predictor) applyPendingRollback() {
	if p.pendingRollback == nil {
		return
	}
	tRb := *p.pendingRollback
	idx := int(tRb) % p.cfg.History
	snap := p.stateHistory[idx]
	if snap.valid && snap.tick == tRb {
		p.state = snap.state
		p.renderPrev = p.state
		p.localTick = tRb
		metrics.ClientRollbacks.Inc()
	} else {
		metrics.ClientRollbackHorizonExceeded.Inc()
	}
	p.pendingRollback = nil
}

// simulateOneTick predicts or applies the authoritative inputs for
// localTick, advances the simulation, records what was used for mismatch
// detection, schedules the corresponding outbound Input, and applies the
// malicious-mode render tamper if enabled. expectedServerTick is the
// server's estimated current tick (wallTick - LeadTicks), used to stamp
// the outbound input per spec §4.F step 7.
func (p *Predictor) simulateOneTick(now time.Time, expectedServerTick uint32) {
	dt := 1.0 / float32(p.cfg.TPS)
	idx := int(p.localTick) % p.cfg.History

	p.renderPrev = p.state
	p.stateHistory[idx] = snapSlot{valid: true, tick: p.localTick, state: p.state}

	var inputs [sim.PlayerCount]uint8
	haveAuth := false
	if auth := p.authInputs[idx]; auth.valid && auth.tick == p.localTick {
		inputs = auth.inputs
		haveAuth = true
	} else {
		otherID := 1 - p.myID
		inputs[p.myID] = p.localInput()
		inputs[otherID] = p.lastRemote[otherID]
	}
	if !haveAuth {
		metrics.ClientPredictedTicks.Inc()
	}

	p.usedInputs[idx] = usedSlot{valid: true, tick: p.localTick, inputs: inputs}

	latencyTicks := uint32(uint64(p.delayMs.Get()) * uint64(p.cfg.TPS) / 1000)
	stampedTick := p.localTick + latencyTicks
	if ceiling := expectedServerTick + p.cfg.DMax; stampedTick > ceiling {
		stampedTick = ceiling
	}
	p.outQueue.Enqueue(now, p.delayMs.Get(), netio.SendInputCmd{Tick: stampedTick, Bits: inputs[p.myID]})

	p.state = sim.Step(p.state, inputs)
	if p.malicious {
		pl := &p.state.Players[p.myID]
		pl.Y -= 20
		pl.VY = 0
	}

	p.localTick++
	p.accumulator -= dt
}

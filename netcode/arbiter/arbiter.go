// Package arbiter implements the server side of the lockstep protocol
// (spec §4.D): it accepts exactly sim.PlayerCount connections, assigns
// stable player ids from accept order (never from wire content), gathers
// per-tick inputs, broadcasts the authoritative pair for every tick it
// advances, and simulates its own copy of the world purely for telemetry.
package arbiter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Abcight/lockstep/internal/logging"
	"github.com/Abcight/lockstep/internal/metrics"
	"github.com/Abcight/lockstep/netcode/clock"
	"github.com/Abcight/lockstep/netcode/sim"
	"github.com/Abcight/lockstep/netcode/wire"
)

// PlayerCount is the fixed number of connections the arbiter accepts.
const PlayerCount = sim.PlayerCount

// Config carries the process-wide constants that govern arbitration (spec §6).
type Config struct {
	TPS        uint32
	LeadTicks  uint32
	DMax       uint32
	StartDelay time.Duration
}

// DefaultConfig returns the spec §6 defaults.
func DefaultConfig() Config {
	return Config{
		TPS:        clock.TPS,
		LeadTicks:  clock.LeadTicks,
		DMax:       clock.DMax,
		StartDelay: time.Duration(clock.StartDelayMs) * time.Millisecond,
	}
}

// Render is the arbiter's own telemetry view of the simulation — it steps
// the same deterministic function the clients do, purely for an optional
// server-side spectator render (spec §4.D).
type Render struct {
	Tick  uint32
	State sim.State
}

type inboundInput struct {
	playerID int
	tick     uint32
	bits     uint8
}

type conn struct {
	id int
	nc net.Conn
}

// Arbiter is the server side of one lockstep session.
type Arbiter struct {
	cfg Config

	mu    sync.Mutex
	conns []*conn

	inbound  chan inboundInput
	renderCh chan Render
}

// New constructs an Arbiter. Use DefaultConfig() for the spec defaults.
func New(cfg Config) *Arbiter {
	return &Arbiter{
		cfg:      cfg,
		inbound:  make(chan inboundInput, 4096),
		renderCh: make(chan Render, 64),
	}
}

// Render returns a channel of the arbiter's own simulated state, at most
// one value per advanced tick; a value is dropped when the channel's
// buffer is full.
func (a *Arbiter) Render() <-chan Render { return a.renderCh }

// Run binds addr, accepts PlayerCount connections in order, performs the
// shared-start handshake, then runs the steady-state tick loop until ctx
// is cancelled or listen/accept fails. A failed AssignStart send is logged
// and does not stop the session.
func (a *Arbiter) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("arbiter: listen %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for i := 0; i < PlayerCount; i++ {
		nc, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("arbiter: accept: %w", err)
		}
		if tc, ok := nc.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		c := &conn{id: i, nc: nc}
		a.mu.Lock()
		a.conns = append(a.conns, c)
		n := len(a.conns)
		a.mu.Unlock()
		metrics.ServerConnectedClients.Set(float64(n))
		logging.L().Infow("arbiter: client connected", "player_id", i, "remote", nc.RemoteAddr())

		go a.readerLoop(c)
	}

	startAt := time.Now().Add(a.cfg.StartDelay)
	a.mu.Lock()
	for _, c := range a.conns {
		var startAfterMs uint32
		if d := time.Until(startAt); d > 0 {
			startAfterMs = uint32(d.Milliseconds())
		}
		payload := wire.EncodeAssignStart(wire.AssignStart{PlayerID: uint8(c.id), StartAfterMs: startAfterMs})
		if err := wire.WriteFrame(c.nc, payload); err != nil {
			logging.L().Warnw("arbiter: assign_start send failed", "player_id", c.id, "err", err)
		}
	}
	a.mu.Unlock()

	sleepUntil(ctx, startAt)

	return a.steadyState(ctx, startAt)
}

func sleepUntil(ctx context.Context, at time.Time) {
	for {
		d := time.Until(at)
		if d <= 0 {
			return
		}
		step := d
		if step > 5*time.Millisecond {
			step = 5 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
		}
	}
}

func (a *Arbiter) readerLoop(c *conn) {
	for {
		payload, err := wire.ReadFrame(c.nc)
		if err != nil {
			logging.L().Debugw("arbiter: reader terminated", "player_id", c.id, "err", err)
			return
		}
		in, err := wire.DecodeInput(payload)
		if err != nil {
			logging.L().Debugw("arbiter: malformed input frame", "player_id", c.id, "err", err)
			return
		}
		// The connection-assigned id is authoritative; nothing from the
		// wire payload is ever treated as identity (spec §9).
		a.inbound <- inboundInput{playerID: c.id, tick: in.Tick, bits: in.Bits}
	}
}

func (a *Arbiter) steadyState(ctx context.Context, startAt time.Time) error {
	var serverTick uint32
	state := sim.New()

	var pending [PlayerCount]map[uint32]uint8
	for i := range pending {
		pending[i] = make(map[uint32]uint8)
	}
	var last [PlayerCount]uint8

	lastStep := time.Now()
	var acc float32
	dt := 1.0 / float32(a.cfg.TPS)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		acc += float32(now.Sub(lastStep).Seconds())
		lastStep = now

		wall := clock.WallTick(startAt, now, a.cfg.TPS)
		target := clock.TargetTick(wall, a.cfg.LeadTicks)

		a.ingest(&pending, serverTick)

		for acc >= dt && serverTick <= target {
			var inputs [PlayerCount]uint8
			for pid := 0; pid < PlayerCount; pid++ {
				if b, ok := pending[pid][serverTick]; ok {
					inputs[pid] = b
					last[pid] = b
					delete(pending[pid], serverTick)
				} else {
					// Last-known-inputs carryover (spec §9).
					inputs[pid] = last[pid]
				}
			}

			a.broadcast(wire.TickInputs{Tick: serverTick, Inputs: inputs})
			metrics.ServerTicksProcessed.Inc()

			state = sim.Step(state, inputs)
			select {
			case a.renderCh <- Render{Tick: serverTick, State: state}:
			default:
			}

			serverTick++
			acc -= dt
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Millisecond):
		}
	}
}

// ingest drains every currently-queued input record and applies the
// staleness/window/first-submission-wins rules from spec §4.D.
func (a *Arbiter) ingest(pending *[PlayerCount]map[uint32]uint8, serverTick uint32) {
	for {
		select {
		case in := <-a.inbound:
			switch {
			case in.tick < serverTick:
				metrics.ServerInputsDropped.WithLabelValues(metrics.DropStale).Inc()
			case in.tick > serverTick+a.cfg.DMax:
				metrics.ServerInputsDropped.WithLabelValues(metrics.DropOutOfWindow).Inc()
			default:
				if _, exists := pending[in.playerID][in.tick]; exists {
					metrics.ServerInputsDropped.WithLabelValues(metrics.DropDuplicate).Inc()
					continue
				}
				pending[in.playerID][in.tick] = in.bits
			}
		default:
			return
		}
	}
}

func (a *Arbiter) broadcast(msg wire.TickInputs) {
	payload := wire.EncodeTickInputs(msg)

	a.mu.Lock()
	defer a.mu.Unlock()

	live := a.conns[:0]
	for _, c := range a.conns {
		if err := wire.WriteFrame(c.nc, payload); err != nil {
			metrics.ServerBroadcastErrors.Inc()
			_ = c.nc.Close()
			logging.L().Infow("arbiter: dropping connection after failed send", "player_id", c.id, "err", err)
			continue
		}
		live = append(live, c)
	}
	a.conns = live
	metrics.ServerConnectedClients.Set(float64(len(a.conns)))
}

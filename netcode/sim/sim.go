// Package sim implements the deterministic simulation step that the
// lockstep core treats as an opaque collaborator (spec §6): a pure,
// total, side-effect-free function from (State, per-player input bits)
// to the next State at a fixed tick rate.
package sim

// PlayerCount is the fixed number of simulated players (spec §6, N_PLAYERS).
const PlayerCount = 2

// TPS is the default tick rate in ticks per second.
const TPS = 60

// DT is the fixed simulation timestep derived from TPS.
const DT float32 = 1.0 / TPS

// Arena bounds, in the same units as Player.X/Y.
const (
	BufferW float32 = 240
	BufferH float32 = 140
)

const (
	PlayerWidth  float32 = 32
	PlayerHeight float32 = 32
)

// InputBits is the three-flag input byte described in spec §3. Unused
// bits are reserved and must be preserved bit-for-bit through the codec.
type InputBits uint8

const (
	Left  InputBits = 1 << 0
	Right InputBits = 1 << 1
	Jump  InputBits = 1 << 2
)

// Has reports whether flag is set.
func (b InputBits) Has(flag InputBits) bool {
	return b&flag != 0
}

// Player is one simulated body.
type Player struct {
	X, Y, VX, VY float32
}

// State is the opaque-to-the-core simulation state (spec §3, §6).
type State struct {
	Players [PlayerCount]Player
}

// New returns the fixed starting state shared by the server and every client.
func New() State {
	return State{
		Players: [PlayerCount]Player{
			{X: 20, Y: 20},
			{X: 100, Y: 20},
		},
	}
}

// Step advances state by one tick given one input byte per player. Step is
// pure: it never mutates its argument and never reads wall-clock time,
// goroutine identity, or any other ambient state. Given bit-identical
// inputs and an identical starting state, every call anywhere produces a
// bit-identical result (spec §8 property 1). Violating this contract on
// the caller's side (e.g. a malicious client mutating its own copy of the
// returned State) cannot affect any other participant, since only input
// bits ever cross the wire (spec §8 property 8).
func Step(state State, inputs [PlayerCount]uint8) State {
	const (
		gravity   float32 = 600
		moveSpeed float32 = 90
		jumpSpeed float32 = 220
	)

	for i := range state.Players {
		p := &state.Players[i]
		input := InputBits(inputs[i])

		var dx float32
		if input.Has(Left) {
			dx--
		}
		if input.Has(Right) {
			dx++
		}
		p.VX = dx * moveSpeed

		onGround := p.Y+PlayerHeight >= BufferH
		if input.Has(Jump) && onGround {
			p.VY = -jumpSpeed
		}

		p.VY += gravity * DT
		p.X += p.VX * DT
		p.Y += p.VY * DT

		if p.X < 0 {
			p.X = 0
		}
		if maxX := BufferW - PlayerWidth; p.X > maxX {
			p.X = maxX
		}

		if p.Y < 0 {
			p.Y = 0
			if p.VY < 0 {
				p.VY = 0
			}
		}
		if maxY := BufferH - PlayerHeight; p.Y > maxY {
			p.Y = maxY
			if p.VY > 0 {
				p.VY = 0
			}
		}
	}

	return state
}

// Package netio hosts the two background socket workers on the client
// side of the connection (spec §4.E): a reader that turns decoded frames
// into in-process events, and a writer that turns outbound commands into
// Input frames. Both run on their own goroutine and talk to the rest of
// the client only through channels (spec §5).
package netio

import (
	"io"
	"net"

	"github.com/Abcight/lockstep/netcode/wire"
)

// NetEvent mirrors a decoded S->C message. Exactly one field is non-nil.
type NetEvent struct {
	AssignStart *wire.AssignStart
	TickInputs  *wire.TickInputs
}

// SendInputCmd is the writer-facing command. It carries the tick the
// client is claiming this input is for (spec §4.E).
type SendInputCmd struct {
	Tick uint32
	Bits uint8
}

// Reader decodes frames from conn and delivers them on events until a
// codec failure or EOF terminates it (spec §4.E, §7). It never closes
// events; the caller owns that channel's lifecycle.
func Reader(conn net.Conn, events chan<- NetEvent) error {
	for {
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		msg, err := wire.DecodeServerMessage(payload)
		if err != nil {
			return err
		}

		ev := NetEvent{}
		switch {
		case msg.AssignStart != nil:
			ev.AssignStart = msg.AssignStart
		case msg.TickInputs != nil:
			ev.TickInputs = msg.TickInputs
		}
		events <- ev
	}
}

// Writer consumes SendInputCmd values from cmds and emits Input frames
// until cmds is closed or a write fails.
func Writer(conn net.Conn, cmds <-chan SendInputCmd) error {
	for cmd := range cmds {
		payload := wire.EncodeInput(wire.Input{Tick: cmd.Tick, Bits: cmd.Bits})
		if err := wire.WriteFrame(conn, payload); err != nil {
			return err
		}
	}
	return nil
}

// Package wire implements the length-framed binary protocol between the
// server arbiter and its clients (spec §4.A). Every implementation of
// this protocol must produce byte-identical frames for equal messages,
// so encoding is fixed: little-endian fields, a one-byte tag, no padding.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType tags the payload that follows the frame length.
type MessageType uint8

const (
	TypeAssignStart MessageType = 1
	TypeTickInputs  MessageType = 2
	TypeInput       MessageType = 3
)

// Decoding failures, each of which terminates the connection (spec §7).
var (
	ErrMalformedFrame = errors.New("wire: malformed frame")
	ErrUnknownTag     = errors.New("wire: unknown message tag")
	ErrTruncated      = errors.New("wire: truncated frame")
)

// AssignStart is sent server-to-client once per connection at handshake time.
type AssignStart struct {
	PlayerID     uint8
	StartAfterMs uint32
}

// TickInputs is the authoritative input pair broadcast for one tick.
type TickInputs struct {
	Tick   uint32
	Inputs [2]uint8
}

// Input is sent client-to-server: the bits the client is contributing for Tick.
// PlayerID is never present on the wire (spec §9 trust boundary) — identity
// comes from the accepting connection, not message content.
type Input struct {
	Tick uint32
	Bits uint8
}

// ServerMessage is the decoded form of any S->C payload; exactly one field is set.
type ServerMessage struct {
	AssignStart *AssignStart
	TickInputs  *TickInputs
}

// EncodeAssignStart returns the canonical payload for an AssignStart message.
func EncodeAssignStart(m AssignStart) []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(TypeAssignStart), m.PlayerID)
	buf = binary.LittleEndian.AppendUint32(buf, m.StartAfterMs)
	return buf
}

// EncodeTickInputs returns the canonical payload for a TickInputs message.
func EncodeTickInputs(m TickInputs) []byte {
	buf := make([]byte, 0, 7)
	buf = append(buf, byte(TypeTickInputs))
	buf = binary.LittleEndian.AppendUint32(buf, m.Tick)
	buf = append(buf, m.Inputs[0], m.Inputs[1])
	return buf
}

// EncodeInput returns the canonical payload for an Input message.
func EncodeInput(m Input) []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(TypeInput))
	buf = binary.LittleEndian.AppendUint32(buf, m.Tick)
	buf = append(buf, m.Bits)
	return buf
}

// DecodeServerMessage decodes an AssignStart or TickInputs payload.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	if len(payload) < 1 {
		return ServerMessage{}, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	r := bytes.NewReader(payload[1:])
	switch MessageType(payload[0]) {
	case TypeAssignStart:
		if r.Len() < 5 {
			return ServerMessage{}, fmt.Errorf("%w: short AssignStart", ErrMalformedFrame)
		}
		var playerID uint8
		var startAfterMs uint32
		if err := binary.Read(r, binary.LittleEndian, &playerID); err != nil {
			return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &startAfterMs); err != nil {
			return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ServerMessage{AssignStart: &AssignStart{PlayerID: playerID, StartAfterMs: startAfterMs}}, nil

	case TypeTickInputs:
		if r.Len() < 6 {
			return ServerMessage{}, fmt.Errorf("%w: short TickInputs", ErrMalformedFrame)
		}
		var tick uint32
		if err := binary.Read(r, binary.LittleEndian, &tick); err != nil {
			return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		var inputs [2]byte
		if _, err := io.ReadFull(r, inputs[:]); err != nil {
			return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ServerMessage{TickInputs: &TickInputs{Tick: tick, Inputs: [2]uint8{inputs[0], inputs[1]}}}, nil

	default:
		return ServerMessage{}, fmt.Errorf("%w: tag %d", ErrUnknownTag, payload[0])
	}
}

// DecodeInput decodes a C->S Input payload. The server must ignore any
// player-id-like field a hostile client might add elsewhere; this wire
// format has none (spec §9).
func DecodeInput(payload []byte) (Input, error) {
	if len(payload) < 1 || MessageType(payload[0]) != TypeInput {
		if len(payload) < 1 {
			return Input{}, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
		}
		return Input{}, fmt.Errorf("%w: tag %d", ErrUnknownTag, payload[0])
	}
	r := bytes.NewReader(payload[1:])
	if r.Len() < 5 {
		return Input{}, fmt.Errorf("%w: short Input", ErrMalformedFrame)
	}
	var tick uint32
	if err := binary.Read(r, binary.LittleEndian, &tick); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	var bits uint8
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return Input{Tick: tick, Bits: bits}, nil
}

// WriteFrame writes a 4-byte little-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame. It returns io.EOF only when
// the stream ends exactly at a frame boundary; any other short read is
// ErrTruncated (spec §4.A, §7).
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	return payload, nil
}

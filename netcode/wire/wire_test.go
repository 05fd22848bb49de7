package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignStartRoundTrip(t *testing.T) {
	in := AssignStart{PlayerID: 1, StartAfterMs: 800}
	payload := EncodeAssignStart(in)

	msg, err := DecodeServerMessage(payload)
	require.NoError(t, err)
	require.NotNil(t, msg.AssignStart)
	require.Equal(t, in, *msg.AssignStart)
}

func TestTickInputsRoundTrip(t *testing.T) {
	in := TickInputs{Tick: 12345, Inputs: [2]uint8{0b101, 0b010}}
	payload := EncodeTickInputs(in)

	msg, err := DecodeServerMessage(payload)
	require.NoError(t, err)
	require.NotNil(t, msg.TickInputs)
	require.Equal(t, in, *msg.TickInputs)
}

func TestInputRoundTrip(t *testing.T) {
	in := Input{Tick: 42, Bits: 0b111}
	payload := EncodeInput(in)

	out, err := DecodeInput(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestEncodingIsCanonical(t *testing.T) {
	a := EncodeTickInputs(TickInputs{Tick: 7, Inputs: [2]uint8{1, 2}})
	b := EncodeTickInputs(TickInputs{Tick: 7, Inputs: [2]uint8{1, 2}})
	require.True(t, bytes.Equal(a, b))
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := DecodeServerMessage([]byte{99, 1, 2, 3})
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeTruncatedPayload(t *testing.T) {
	_, err := DecodeServerMessage([]byte{byte(TypeTickInputs), 0, 0})
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := EncodeInput(Input{Tick: 9, Bits: 4})
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedMidFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3, 4, 5}))
	truncated := buf.Bytes()[:6]

	_, err := ReadFrame(bytes.NewReader(truncated))
	require.ErrorIs(t, err, ErrTruncated)
}

package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	in := FrameHeader{PayloadLen: 1234, Type: FrameHeaders, Flags: FlagEndHeaders, StreamID: 7}
	dst := make([]byte, frameHeaderLen)
	encodeFrameHeader(dst, in)

	out, err := decodeFrameHeader(dst)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeFrameHeaderMasksReservedBit(t *testing.T) {
	dst := make([]byte, frameHeaderLen)
	encodeFrameHeader(dst, FrameHeader{StreamID: 5})
	dst[5] |= 0x80 // set the reserved high bit directly on the wire

	out, err := decodeFrameHeader(dst)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), out.StreamID)
}

func TestEncodeSettingsIsAlwaysThirtySixBytes(t *testing.T) {
	body := encodeSettings(defaultH2Settings())
	assert.Len(t, body, 36, "payload_len must reflect every one of the six identifiers, never a placeholder")

	entries, err := decodeSettings(body)
	require.NoError(t, err)
	assert.Len(t, entries, 6)
}

func TestSettingsApplyIsIdempotent(t *testing.T) {
	entries := []settingEntry{{SettingInitialWindowSize, 1000}, {SettingMaxFrameSize, 32768}}

	var s1, s2 h2Settings
	s1.apply(entries)
	s2.apply(entries)
	s2.apply(entries)

	assert.Equal(t, s1, s2, "applying the same SETTINGS twice must yield identical state")
}

func TestApplyIgnoresUnknownIdentifiers(t *testing.T) {
	var s h2Settings
	s.apply([]settingEntry{{0xff, 99}})
	assert.Equal(t, h2Settings{}, s)
}

func TestWindowUpdateIncrementMasksReservedBit(t *testing.T) {
	payload := encodeUint32(0x80000000 | 65535)
	inc, err := windowUpdateIncrement(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(65535), inc)
}

func TestWindowUpdateIncrementRejectsShortPayload(t *testing.T) {
	_, err := windowUpdateIncrement([]byte{0, 0})
	assert.Error(t, err)
}

func TestDecodeSettingsRejectsMisalignedPayload(t *testing.T) {
	_, err := decodeSettings([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEncodeFrameProducesHeaderPlusPayload(t *testing.T) {
	frame := encodeFrame(FramePing, FlagAck, 0, []byte("12345678"))
	require.Len(t, frame, frameHeaderLen+8)

	hdr, err := decodeFrameHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, FramePing, hdr.Type)
	assert.Equal(t, FlagAck, hdr.Flags)
	assert.Equal(t, uint32(8), hdr.PayloadLen)
	assert.Equal(t, "12345678", string(frame[frameHeaderLen:]))
}

package mux

import (
	"encoding/binary"
	"fmt"
)

// H2 wire constants per RFC 9113 §4, named and grounded on
// other_examples/.../dgrr-http2/http2.go's frame/flag/error tables.
const (
	frameHeaderLen = 9
	h2Preface      = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
)

// FrameType is the H2 frame type octet.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRstStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

// Frame flags (only the ones this engine inspects).
const (
	FlagAck        uint8 = 0x1
	FlagEndStream  uint8 = 0x1
	FlagEndHeaders uint8 = 0x4
	FlagPadded     uint8 = 0x8
	FlagPriority   uint8 = 0x20
)

// H2 error codes, RFC 9113 §7.
const (
	ErrCodeNone               uint32 = 0x0
	ErrCodeProtocol           uint32 = 0x1
	ErrCodeInternal           uint32 = 0x2
	ErrCodeFlowControl        uint32 = 0x3
	ErrCodeSettingsTimeout    uint32 = 0x4
	ErrCodeStreamClosed       uint32 = 0x5
	ErrCodeFrameSize          uint32 = 0x6
	ErrCodeRefusedStream      uint32 = 0x7
	ErrCodeCancel             uint32 = 0x8
	ErrCodeCompression        uint32 = 0x9
	ErrCodeConnect            uint32 = 0xa
	ErrCodeEnhanceYourCalm    uint32 = 0xb
	ErrCodeInadequateSecurity uint32 = 0xc
	ErrCodeHTTP11Required     uint32 = 0xd
)

// SETTINGS identifiers, spec §3.
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// FrameHeader is the 9-octet H2 frame header (RFC 9113 §4.1).
type FrameHeader struct {
	PayloadLen uint32 // 24 bits on the wire
	Type       FrameType
	Flags      uint8
	StreamID   uint32 // 31 bits on the wire, top bit reserved
}

// decodeFrameHeader parses exactly frameHeaderLen bytes.
func decodeFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < frameHeaderLen {
		return FrameHeader{}, fmt.Errorf("mux: short frame header (%d bytes)", len(b))
	}
	length := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	typ := FrameType(b[3])
	flags := b[4]
	sid := binary.BigEndian.Uint32(b[5:9]) &^ (1 << 31)
	return FrameHeader{PayloadLen: length, Type: typ, Flags: flags, StreamID: sid}, nil
}

// encodeFrameHeader serializes h into dst[:frameHeaderLen].
func encodeFrameHeader(dst []byte, h FrameHeader) {
	dst[0] = byte(h.PayloadLen >> 16)
	dst[1] = byte(h.PayloadLen >> 8)
	dst[2] = byte(h.PayloadLen)
	dst[3] = byte(h.Type)
	dst[4] = h.Flags
	binary.BigEndian.PutUint32(dst[5:9], h.StreamID&^(1<<31))
}

// h2Settings holds the six negotiable parameters (spec §3). Defaults
// match RFC 9113 §6.5.2 exactly as the source's H2Settings::default().
type h2Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

func defaultH2Settings() h2Settings {
	return h2Settings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: ^uint32(0),
		InitialWindowSize:    65535,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    ^uint32(0),
	}
}

// settingEntry is one (identifier, value) pair from a SETTINGS body.
type settingEntry struct {
	ID    uint16
	Value uint32
}

// decodeSettings parses a SETTINGS payload into entries; unknown
// identifiers are returned too, since applying them is where they're
// ignored (spec §4.3).
func decodeSettings(payload []byte) ([]settingEntry, error) {
	if len(payload)%6 != 0 {
		return nil, fmt.Errorf("mux: settings payload not a multiple of 6 (%d bytes)", len(payload))
	}
	entries := make([]settingEntry, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		id := binary.BigEndian.Uint16(payload[i : i+2])
		val := binary.BigEndian.Uint32(payload[i+2 : i+6])
		entries = append(entries, settingEntry{ID: id, Value: val})
	}
	return entries, nil
}

// apply mutates s per spec §4.3: identifiers 1..=6 are recognized,
// anything else is ignored rather than failing the connection.
func (s *h2Settings) apply(entries []settingEntry) {
	for _, e := range entries {
		switch e.ID {
		case SettingHeaderTableSize:
			s.HeaderTableSize = e.Value
		case SettingEnablePush:
			s.EnablePush = e.Value == 1
		case SettingMaxConcurrentStreams:
			s.MaxConcurrentStreams = e.Value
		case SettingInitialWindowSize:
			s.InitialWindowSize = e.Value
		case SettingMaxFrameSize:
			s.MaxFrameSize = e.Value
		case SettingMaxHeaderListSize:
			s.MaxHeaderListSize = e.Value
		}
	}
}

// encodeSettings serializes every field of s as a full SETTINGS body.
// The emitted frame's payload_len is always len(this), never a
// hardcoded placeholder (spec §9 open question (b)).
func encodeSettings(s h2Settings) []byte {
	push := uint32(0)
	if s.EnablePush {
		push = 1
	}
	entries := []settingEntry{
		{SettingHeaderTableSize, s.HeaderTableSize},
		{SettingEnablePush, push},
		{SettingMaxConcurrentStreams, s.MaxConcurrentStreams},
		{SettingInitialWindowSize, s.InitialWindowSize},
		{SettingMaxFrameSize, s.MaxFrameSize},
		{SettingMaxHeaderListSize, s.MaxHeaderListSize},
	}
	out := make([]byte, 6*len(entries))
	for i, e := range entries {
		binary.BigEndian.PutUint16(out[i*6:], e.ID)
		binary.BigEndian.PutUint32(out[i*6+2:], e.Value)
	}
	return out
}

// encodeFrame serializes a complete frame (header + payload) into one
// buffer, for the single-shot control frames (SETTINGS, SETTINGS-ACK,
// PING, PING-ACK, RST_STREAM, GOAWAY) and the DATA frames the engine
// emits.
func encodeFrame(typ FrameType, flags uint8, streamID uint32, payload []byte) []byte {
	out := make([]byte, frameHeaderLen+len(payload))
	encodeFrameHeader(out, FrameHeader{
		PayloadLen: uint32(len(payload)),
		Type:       typ,
		Flags:      flags,
		StreamID:   streamID,
	})
	copy(out[frameHeaderLen:], payload)
	return out
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// windowUpdateIncrement decodes a WINDOW_UPDATE payload's 31-bit
// increment (top bit reserved).
func windowUpdateIncrement(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("mux: malformed WINDOW_UPDATE payload (%d bytes)", len(payload))
	}
	return decodeUint32(payload) &^ (1 << 31), nil
}

// rstStreamPayload builds a 4-byte RST_STREAM payload.
func rstStreamPayload(code uint32) []byte { return encodeUint32(code) }

// goAwayPayload builds a GOAWAY payload with no debug data.
func goAwayPayload(lastStreamID, code uint32) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:4], lastStreamID&^(1<<31))
	binary.BigEndian.PutUint32(out[4:8], code)
	return out
}

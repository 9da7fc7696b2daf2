package http2

import (
	"sync"

	"github.com/domsolutions/h2engine/http2utils"
)

const FrameSettings FrameType = 0x4

var _ Frame = &Settings{}

const (
	// default SETTINGS parameters, https://tools.ietf.org/html/rfc7540#section-6.5.2
	defaultHeaderTableSize   uint32 = 4096
	defaultConcurrentStreams uint32 = 100
	defaultWindowSize        uint32 = 1<<16 - 1
	defaultMaxFrameSize      uint32 = 1 << 14

	maxWindowSize = 1<<31 - 1
	maxFrameSize  = 1<<24 - 1

	// SETTINGS identifiers, https://tools.ietf.org/html/rfc7540#section-6.5.2
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6

	settingPairSize = 6
)

var settingsPool = sync.Pool{
	New: func() interface{} {
		st := &Settings{}
		st.setDefaults()
		return st
	},
}

// Settings carries the negotiated per-connection parameters exchanged
// with a SETTINGS frame.
//
// https://tools.ietf.org/html/rfc7540#section-6.5
type Settings struct {
	ack bool

	headerTableSize      uint32
	disablePush          bool
	maxConcurrentStreams uint32
	initialWindowSize    uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32

	// raw is the scratch buffer Serialize builds the payload in. Every
	// setting is emitted, except MAX_HEADER_LIST_SIZE while it is 0.
	raw []byte
}

// AcquireSettings gets a Settings frame, pre-filled with RFC defaults,
// from the pool.
func AcquireSettings() *Settings {
	st := settingsPool.Get().(*Settings)
	st.Reset()
	return st
}

// ReleaseSettings puts st back into the pool.
func ReleaseSettings(st *Settings) {
	settingsPool.Put(st)
}

func (st *Settings) setDefaults() {
	st.headerTableSize = defaultHeaderTableSize
	st.maxConcurrentStreams = defaultConcurrentStreams
	st.initialWindowSize = defaultWindowSize
	st.maxFrameSize = defaultMaxFrameSize
}

func (st *Settings) Type() FrameType {
	return FrameSettings
}

// Reset restores st to RFC default values.
func (st *Settings) Reset() {
	st.ack = false
	st.disablePush = false
	st.maxHeaderListSize = 0
	st.raw = st.raw[:0]
	st.setDefaults()
}

func (st *Settings) CopyTo(s *Settings) {
	s.ack = st.ack
	s.headerTableSize = st.headerTableSize
	s.disablePush = st.disablePush
	s.maxConcurrentStreams = st.maxConcurrentStreams
	s.initialWindowSize = st.initialWindowSize
	s.maxFrameSize = st.maxFrameSize
	s.maxHeaderListSize = st.maxHeaderListSize
}

// IsAck reports whether this SETTINGS frame merely acknowledges a peer's.
func (st *Settings) IsAck() bool {
	return st.ack
}

// SetAck marks this frame as a SETTINGS acknowledgement; an ack carries
// no payload.
func (st *Settings) SetAck(ack bool) {
	st.ack = ack
}

func (st *Settings) HeaderTableSize() uint32 {
	return st.headerTableSize
}

func (st *Settings) SetHeaderTableSize(n uint32) {
	st.headerTableSize = n
}

func (st *Settings) Push() bool {
	return !st.disablePush
}

func (st *Settings) SetPush(enabled bool) {
	st.disablePush = !enabled
}

func (st *Settings) MaxConcurrentStreams() uint32 {
	return st.maxConcurrentStreams
}

func (st *Settings) SetMaxConcurrentStreams(n uint32) {
	st.maxConcurrentStreams = n
}

// MaxWindowSize returns the negotiated initial flow-control window size
// for newly created streams.
func (st *Settings) MaxWindowSize() uint32 {
	return st.initialWindowSize
}

func (st *Settings) SetMaxWindowSize(n uint32) {
	if n > maxWindowSize {
		n = maxWindowSize
	}
	st.initialWindowSize = n
}

func (st *Settings) MaxFrameSize() uint32 {
	return st.maxFrameSize
}

func (st *Settings) SetMaxFrameSize(n uint32) {
	if n > maxFrameSize {
		n = maxFrameSize
	}
	st.maxFrameSize = n
}

func (st *Settings) MaxHeaderListSize() uint32 {
	return st.maxHeaderListSize
}

func (st *Settings) SetMaxHeaderListSize(n uint32) {
	st.maxHeaderListSize = n
}

func (st *Settings) Deserialize(fr *FrameHeader) error {
	if fr.Flags().Has(FlagAck) {
		st.ack = true
		return nil
	}

	payload := fr.payload
	if len(payload)%settingPairSize != 0 {
		return ErrMissingBytes
	}

	for i := 0; i+settingPairSize <= len(payload); i += settingPairSize {
		b := payload[i : i+settingPairSize]
		id := uint16(b[0])<<8 | uint16(b[1])
		value := http2utils.BytesToUint32(b[2:])

		switch id {
		case SettingHeaderTableSize:
			st.headerTableSize = value
		case SettingEnablePush:
			st.disablePush = value == 0
		case SettingMaxConcurrentStreams:
			st.maxConcurrentStreams = value
		case SettingInitialWindowSize:
			if value > maxWindowSize {
				return NewError(FlowControlError, "initial window size too large")
			}
			st.initialWindowSize = value
		case SettingMaxFrameSize:
			st.maxFrameSize = value
		case SettingMaxHeaderListSize:
			st.maxHeaderListSize = value
		}
		// unknown identifiers are ignored per RFC 7540 6.5.2.
	}

	return nil
}

func (st *Settings) Serialize(fr *FrameHeader) {
	if st.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
		fr.payload = fr.payload[:0]
		return
	}

	st.raw = st.raw[:0]
	st.raw = appendSetting(st.raw, SettingHeaderTableSize, st.headerTableSize)
	if st.disablePush {
		st.raw = appendSetting(st.raw, SettingEnablePush, 0)
	} else {
		st.raw = appendSetting(st.raw, SettingEnablePush, 1)
	}
	st.raw = appendSetting(st.raw, SettingMaxConcurrentStreams, st.maxConcurrentStreams)
	st.raw = appendSetting(st.raw, SettingInitialWindowSize, st.initialWindowSize)
	st.raw = appendSetting(st.raw, SettingMaxFrameSize, st.maxFrameSize)
	if st.maxHeaderListSize != 0 {
		st.raw = appendSetting(st.raw, SettingMaxHeaderListSize, st.maxHeaderListSize)
	}

	fr.payload = append(fr.payload[:0], st.raw...)
}

func appendSetting(dst []byte, id uint16, value uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	return http2utils.AppendUint32Bytes(dst, value)
}

package http2

import (
	"fmt"
)

// FrameType identifies the kind of payload carried by a FrameHeader.
//
// https://tools.ietf.org/html/rfc7540#section-6
type FrameType uint8

func (ft FrameType) String() string {
	switch ft {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameResetStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	}
	return "UNKNOWN"
}

// Frame is the behaviour every concrete frame payload (DATA, HEADERS,
// SETTINGS, ...) must implement to be read from and written to the wire
// by a FrameHeader.
//
// Frame values are pooled; call Reset before returning one to its pool.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader)
}

// FrameFlags are the single-octet flags carried by a frame header. Their
// meaning is frame-type dependent (e.g. 0x1 is ACK for SETTINGS/PING but
// END_STREAM for DATA/HEADERS).
type FrameFlags uint8

// Has reports whether f is set in flags.
func (flags FrameFlags) Has(f FrameFlags) bool {
	return flags&f == f
}

// Add returns flags with f set.
func (flags FrameFlags) Add(f FrameFlags) FrameFlags {
	return flags | f
}

// AcquireFrame returns a pooled, reset Frame value for the given type.
// Unknown types return nil; callers must check for it.
func AcquireFrame(kind FrameType) Frame {
	switch kind {
	case FrameData:
		return AcquireData()
	case FrameHeaders:
		return AcquireHeaders()
	case FramePriority:
		return AcquirePriority()
	case FrameResetStream:
		return AcquireRstStream()
	case FrameSettings:
		return AcquireSettings()
	case FramePushPromise:
		return AcquirePushPromise()
	case FramePing:
		return AcquirePing()
	case FrameGoAway:
		return AcquireGoAway()
	case FrameWindowUpdate:
		return AcquireWindowUpdate()
	case FrameContinuation:
		return AcquireContinuation()
	}
	return nil
}

// ReleaseFrame returns fr to its pool. Passing nil is a no-op, which lets
// callers release a FrameHeader's body unconditionally.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}

	switch f := fr.(type) {
	case *Data:
		ReleaseData(f)
	case *Headers:
		ReleaseHeaders(f)
	case *Priority:
		ReleasePriority(f)
	case *RstStream:
		ReleaseRstStream(f)
	case *Settings:
		ReleaseSettings(f)
	case *PushPromise:
		ReleasePushPromise(f)
	case *Ping:
		ReleasePing(f)
	case *GoAway:
		ReleaseGoAway(f)
	case *WindowUpdate:
		ReleaseWindowUpdate(f)
	case *Continuation:
		ReleaseContinuation(f)
	default:
		panic(fmt.Sprintf("http2: unknown frame type released: %T", fr))
	}
}

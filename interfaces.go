package http2

import "time"

// Generator is the outbound half of the wire codec: it knows how to
// turn a Frame plus HPACK state into bytes on an Endpoint. The Session
// never touches bufio/HPACK directly; it always goes through a
// Generator so the codec stays swappable (e.g. a test Generator that
// records frames instead of writing them).
type Generator interface {
	// Control serializes a single non-DATA frame addressed to stream
	// (0 for connection-level frames) and returns the number of bytes
	// written.
	Control(fr Frame, stream uint32) (frameBytes int, err error)
	// Data serializes data as one DATA frame for stream, setting
	// END_STREAM when endStream is true, and returns the number of bytes
	// written including the frame header. The caller picks the chunk.
	Data(data []byte, stream uint32, endStream bool) (frameBytes int, err error)

	SetHeaderTableSize(size uint32)
	SetMaxFrameSize(size uint32)
	SetMaxHeaderListSize(size uint32)

	// MaxFrameSize reports the negotiated outbound cap Data enforces, so
	// a DataEntry can chunk a write small enough to never trip it.
	MaxFrameSize() uint32
}

// Endpoint is the narrow transport capability a Session needs: enough
// to shut down the write half on GO_AWAY and close fully once the peer
// is done, without the Session knowing whether it is TCP, TLS, or a
// test pipe.
type Endpoint interface {
	ShutdownOutput() error
	Close() error
	IsOpen() bool
	IdleTimeout() time.Duration
}

// Flusher is the single write-loop that drains queued Entry values to
// the Endpoint. It does not adjust flow-control windows: the dispatch
// core applies an inbound WINDOW_UPDATE through the FlowControlStrategy
// on the reader goroutine, and Window then re-queues the entries parked
// on that stream.
type Flusher interface {
	Append(entry Entry) bool
	Prepend(entry Entry)
	Window(stream *Stream)
	Terminate(cause error)
}

// FlowControlStrategy owns the window arithmetic RFC 7540 6.9
// describes. The Session calls into it at every point windows change;
// a test strategy can substitute fixed, non-shrinking windows.
type FlowControlStrategy interface {
	OnStreamCreated(stream *Stream)
	OnStreamDestroyed(stream *Stream)
	OnDataReceived(s *Session, stream *Stream, length int) error
	OnDataConsumed(s *Session, stream *Stream, length int)
	OnDataSending(stream *Stream, length int)
	OnDataSent(stream *Stream, length int)
	UpdateInitialStreamWindow(s *Session, size int32, local bool)
	WindowUpdate(s *Session, stream *Stream, wu *WindowUpdate) error
}

// SessionListener receives session-wide lifecycle notifications. Like
// StreamListener, a panicking implementation is recovered and logged,
// never allowed to unwind into the dispatch loop.
type SessionListener interface {
	OnSettings(settings *Settings)
	OnPing(roundTrip time.Duration)
	OnGoAway(lastStreamID uint32, code ErrorCode, debugData []byte)
	OnFailure(err error, reason string)
	// OnIdleTimeout is consulted only while the session is NOT_CLOSED;
	// returning true tells the close machine to proceed with abort.
	OnIdleTimeout() bool
}

// Entry is one queued egress operation: either a ControlEntry (any
// non-DATA frame) or a DataEntry (a DATA frame, fragmentable across
// multiple Flusher turns by flow control).
type Entry interface {
	// generate attempts to emit (part of) this entry's frame. ok=false
	// with err=nil means flow control blocked progress and the Flusher
	// should park the entry until Window wakes it; any other return
	// is final.
	generate(gen Generator) (ok bool, err error)
	beforeSend()
	succeeded()
	failed(err error)
	stream() *Stream
}

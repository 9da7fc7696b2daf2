package http2

import "sync/atomic"

// defaultFlowControl is the FlowControlStrategy every Session uses
// unless a caller substitutes their own (e.g. in tests, to freeze
// windows). It implements the window arithmetic RFC 7540 6.9
// describes: per-stream and per-session send/receive credit, batched
// WINDOW_UPDATE emission, and SETTINGS_INITIAL_WINDOW_SIZE
// reconciliation across every open stream.
type defaultFlowControl struct{}

func newDefaultFlowControl() *defaultFlowControl {
	return &defaultFlowControl{}
}

func (f *defaultFlowControl) OnStreamCreated(stream *Stream) {}

func (f *defaultFlowControl) OnStreamDestroyed(stream *Stream) {}

// OnDataReceived debits the stream's receive window by an inbound DATA
// frame's full on-wire length (including any padding) and reports a
// FLOW_CONTROL_ERROR if that drives it negative. The dispatch core only
// calls it for a stream still in the table; the session-level debit
// happens in the dispatch core, not here.
func (f *defaultFlowControl) OnDataReceived(s *Session, stream *Stream, length int) error {
	if stream.addRecvWindow(-int32(length)) < 0 {
		return NewError(FlowControlError, "stream receive window exceeded")
	}
	return nil
}

// OnDataConsumed is called once the application has consumed a DATA
// frame. The stream's outstanding debt is the initial receive window
// minus its current receive window; once that debt reaches half of the
// initial window it is credited back to the stream and session receive
// windows and one WINDOW_UPDATE is sent for each, so small reads don't
// each trigger their own frame.
func (f *defaultFlowControl) OnDataConsumed(s *Session, stream *Stream, length int) {
	threshold := int32(s.initialRecvWindow()) / 2

	consumed := int32(s.initialRecvWindow()) - stream.RecvWindow()
	if consumed <= 0 || consumed < threshold {
		return
	}

	wu := AcquireWindowUpdate()
	wu.SetIncrement(uint32(consumed))
	stream.addRecvWindow(consumed)
	s.sendControl(wu, stream.ID(), stream, nil)

	swu := AcquireWindowUpdate()
	swu.SetIncrement(uint32(consumed))
	s.addRecvWindow(consumed)
	s.sendControl(swu, 0, nil, nil)
}

func (f *defaultFlowControl) OnDataSending(stream *Stream, length int) {}

func (f *defaultFlowControl) OnDataSent(stream *Stream, length int) {}

// UpdateInitialStreamWindow adjusts every currently open stream's window
// by the delta between the previous and new SETTINGS_INITIAL_WINDOW_SIZE,
// per RFC 7540 6.9.2: the send window for the peer's setting (local
// false), the receive window for our own (local true). It never touches
// streams created after the setting changes; those pick up the new
// value from the session's initial window directly.
func (f *defaultFlowControl) UpdateInitialStreamWindow(s *Session, size int32, local bool) {
	var previous int32
	if local {
		previous = int32(s.setLocalInitialWindow(uint32(size)))
	} else {
		previous = int32(s.setRemoteInitialWindow(uint32(size)))
	}

	delta := size - previous
	if delta == 0 {
		return
	}

	for _, st := range s.streams.snapshot() {
		if local {
			st.addRecvWindow(delta)
		} else {
			st.addSendWindow(delta)
		}
	}
}

// WindowUpdate applies an inbound WINDOW_UPDATE's increment to either
// the session window (streamID 0) or a specific stream's send window,
// per RFC 7540 6.9, then hands the affected streams (every open stream
// for a session-level update) to the Flusher so parked DATA is retried.
func (f *defaultFlowControl) WindowUpdate(s *Session, stream *Stream, wu *WindowUpdate) error {
	if stream == nil {
		if atomic.AddInt64(&s.sendWindow, int64(wu.Increment())) > maxWindowSize {
			return NewError(FlowControlError, "session send window overflow")
		}
		for _, st := range s.streams.snapshot() {
			s.flusher.Window(st)
		}
		return nil
	}

	if atomic.AddInt64(&stream.sendWindow, int64(wu.Increment())) > maxWindowSize {
		return &StreamError{StreamID: stream.ID(), Code: FlowControlError}
	}

	s.flusher.Window(stream)
	return nil
}

package http2

// ControlEntry carries any non-DATA frame: HEADERS, SETTINGS, PING,
// GOAWAY, RST_STREAM, WINDOW_UPDATE, PRIORITY, PUSH_PROMISE,
// CONTINUATION.
type ControlEntry struct {
	session  *Session
	frame    Frame
	streamID uint32
	st       *Stream // nil for connection-level frames
	callback func(error)

	frameBytes int
}

func newControlEntry(s *Session, frame Frame, streamID uint32, st *Stream, cb func(error)) *ControlEntry {
	return &ControlEntry{session: s, frame: frame, streamID: streamID, st: st, callback: cb}
}

func (e *ControlEntry) stream() *Stream { return e.st }

func (e *ControlEntry) generate(gen Generator) (bool, error) {
	n, err := gen.Control(e.frame, e.streamID)
	e.frameBytes = n
	return err == nil, err
}

// beforeSend is invoked right before handing the frame to the socket,
// so that a peer's reaction to END_STREAM on the wire never races
// ahead of our own close sub-machine update (AFTER_SEND, in succeeded).
func (e *ControlEntry) beforeSend() {
	switch fr := e.frame.(type) {
	case *Headers:
		if e.st != nil && fr.EndStream() {
			e.st.advance(eventBeforeSend)
		}
	case *Settings:
		if !fr.IsAck() {
			e.session.flow.UpdateInitialStreamWindow(e.session, int32(fr.MaxWindowSize()), true)
		}
	}
}

func (e *ControlEntry) succeeded() {
	e.session.addBytesWritten(e.frameBytes)

	switch fr := e.frame.(type) {
	case *Headers:
		if e.st != nil {
			e.session.onStreamOpened(e.st)
			if fr.EndStream() && e.st.advance(eventAfterSend) {
				e.session.removeStream(e.st)
			}
		}
		ReleaseHeaders(fr)
	case *RstStream:
		if e.st != nil {
			e.st.advance(eventAfterSend)
			e.st.advance(eventReceived)
			e.session.removeStream(e.st)
		}
		ReleaseRstStream(fr)
	case *PushPromise:
		if e.st != nil {
			e.session.onStreamOpened(e.st)
			// A pushed stream is half-closed (remote) from the start.
			e.st.advance(eventReceived)
		}
		ReleasePushPromise(fr)
	case *GoAway:
		e.session.endpoint.ShutdownOutput()
		ReleaseGoAway(fr)
	case *WindowUpdate:
		ReleaseWindowUpdate(fr)
	case *Settings:
		ReleaseSettings(fr)
	case *Ping:
		ReleasePing(fr)
	case *Priority:
		ReleasePriority(fr)
	case *Continuation:
		ReleaseContinuation(fr)
	}

	if e.callback != nil {
		e.callback(nil)
	}
}

func (e *ControlEntry) failed(err error) {
	if e.callback != nil {
		e.callback(err)
	}
}

// DataEntry carries a DATA frame's payload, fragmented across however
// many Flusher turns the flow-control window allows.
type DataEntry struct {
	session  *Session
	st       *Stream
	data     []byte
	endStream bool
	callback func(error)

	dataRemaining  int
	frameRemaining int
}

func newDataEntry(s *Session, st *Stream, data []byte, endStream bool, cb func(error)) *DataEntry {
	return &DataEntry{
		session:       s,
		st:            st,
		data:          data,
		endStream:     endStream,
		callback:      cb,
		dataRemaining: len(data),
	}
}

func (e *DataEntry) stream() *Stream { return e.st }

func (e *DataEntry) generate(gen Generator) (bool, error) {
	window := e.st.SendWindow()
	if sessionWindow := e.session.SendWindow(); sessionWindow < window {
		window = sessionWindow
	}

	if window <= 0 && e.dataRemaining > 0 {
		return false, nil
	}

	n := e.dataRemaining
	if n > int(window) {
		n = int(window)
	}
	if max := int(gen.MaxFrameSize()); max > 0 && n > max {
		n = max
	}

	offset := len(e.data) - e.dataRemaining
	final := n == e.dataRemaining
	endStream := e.endStream && final

	written, err := gen.Data(e.data[offset:offset+n], e.st.ID(), endStream)
	if err != nil {
		return false, err
	}

	e.session.flow.OnDataSending(e.st, n)
	e.st.debitSendWindow(int32(n))
	e.session.debitSendWindow(int32(n))
	e.dataRemaining -= n
	e.frameRemaining = written

	if endStream {
		e.st.advance(eventBeforeSend)
	}

	return true, nil
}

func (e *DataEntry) beforeSend() {}

func (e *DataEntry) succeeded() {
	e.session.addBytesWritten(e.frameRemaining)

	if e.dataRemaining > 0 {
		// More fragments remain; the Flusher will call generate again.
		// No user callback until the final fragment.
		e.session.flusher.Append(e)
		return
	}

	e.session.flow.OnDataSent(e.st, e.frameRemaining)
	if e.endStream && e.st.advance(eventAfterSend) {
		e.session.removeStream(e.st)
	}

	if e.callback != nil {
		e.callback(nil)
	}
}

func (e *DataEntry) failed(err error) {
	if e.callback != nil {
		e.callback(err)
	}
}

// disconnectEntry is the synthetic entry that, once it reaches the
// front of the Flusher's queue, signals every preceding frame (notably
// a GOAWAY) has already been handed to the socket and it is now safe
// to terminate the connection fully.
type disconnectEntry struct {
	session *Session
	cause   error
}

func (e *disconnectEntry) stream() *Stream { return nil }

func (e *disconnectEntry) generate(gen Generator) (bool, error) { return true, nil }

func (e *disconnectEntry) beforeSend() {}

func (e *disconnectEntry) succeeded() {
	e.session.terminate(e.cause)
}

func (e *disconnectEntry) failed(err error) {
	e.session.terminate(err)
}

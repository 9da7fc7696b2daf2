package http2

import (
	"io"
	"sync/atomic"
	"time"
)

// readLoop is the session's single reader goroutine: it is
// simultaneously the Parser and its own listener, dispatching each
// frame to the matching onX handler as soon as it is fully read. No
// handler here may block.
func (s *Session) readLoop() {
	if s.role == RoleServer {
		preface := make([]byte, len(ConnectionPreface))
		if _, err := io.ReadFull(s.br, preface); err != nil {
			s.abort(err)
			return
		}
		if string(preface) != ConnectionPreface {
			s.abort(ErrBadPreface)
			return
		}
	}

	var headerBlock []byte
	var headerStream uint32
	var headerEndStream bool

	for {
		frh, err := ReadFrameFrom(s.br)
		if err == ErrUnknowFrameType {
			// The payload was already discarded, so reading can go on.
			s.onConnectionFailure(NewError(ProtocolError, "unknown frame type"), "upgrade")
			continue
		}
		if err != nil {
			s.abort(err)
			return
		}

		s.touchIdle()
		s.metrics.FramesReceived(frh.Type())
		s.metrics.BytesRead(DefaultFrameSize + frh.Len())
		s.log.Debug("frame received", "type", frh.Type(), "stream", frh.Stream(), "length", frh.Len())

		switch body := frh.Body().(type) {
		case *Data:
			s.onData(frh, body)
		case *Headers:
			headerBlock = append(headerBlock[:0], body.Headers()...)
			headerStream = frh.Stream()
			headerEndStream = body.EndStream()
			if body.EndHeaders() {
				s.finishHeaders(headerStream, headerBlock, headerEndStream)
			}
		case *Continuation:
			headerBlock = append(headerBlock, body.Headers()...)
			if body.EndHeaders() {
				s.finishHeaders(headerStream, headerBlock, headerEndStream)
			}
		case *Priority:
			s.onPriority(frh, body)
		case *RstStream:
			s.onReset(frh, body)
		case *Settings:
			s.onSettings(frh, body)
		case *PushPromise:
			s.onPushPromise(frh, body)
		case *Ping:
			s.onPing(frh, body)
		case *GoAway:
			s.onGoAway(frh, body)
		case *WindowUpdate:
			s.onWindowUpdate(frh, body)
		default:
			s.onConnectionFailure(ErrUnknowFrameType, "upgrade")
		}

		ReleaseFrameHeader(frh)

		if s.IsClosed() {
			return
		}
	}
}

func (s *Session) finishHeaders(streamID uint32, block []byte, endStream bool) {
	fields, err := s.decoder.DecodeFields(block)
	if err != nil {
		s.onConnectionFailure(err, "hpack_decode_error")
		return
	}

	s.headers.onHeaders(s, streamID, fields, endStream)
}

// onHeaders for a server delivers the decoded fields onto an existing
// stream, drops them for an already-closed remote id, and otherwise
// admits a new remote stream (or refuses it past the concurrency limit).
func (h serverHeadersHandler) onHeaders(s *Session, streamID uint32, fields []HeaderField, endStream bool) {
	if st, ok := s.streams.get(streamID); ok {
		st.notifyHeaders(fields, endStream)
		if endStream && st.advance(eventReceived) {
			s.removeStream(st)
		}
		return
	}

	if s.isRemoteClosedID(streamID) {
		// Trailers or headers arriving after the stream already closed.
		return
	}

	st, refused := s.createRemoteStream(streamID)
	if refused {
		return
	}
	if st == nil {
		s.onConnectionFailure(NewError(ProtocolError, "duplicate_stream"), "duplicate_stream")
		return
	}

	st.notifyHeaders(fields, endStream)
	if endStream && st.advance(eventReceived) {
		s.removeStream(st)
	}
}

func (h clientHeadersHandler) onHeaders(s *Session, streamID uint32, fields []HeaderField, endStream bool) {
	st, ok := s.streams.get(streamID)
	if !ok {
		if s.isLocalClosedID(streamID) || s.isRemoteClosedID(streamID) {
			return
		}
		s.onConnectionFailure(NewError(ProtocolError, "unexpected_headers_frame"), "unexpected_headers_frame")
		return
	}

	st.notifyHeaders(fields, endStream)
	if endStream && st.advance(eventReceived) {
		s.removeStream(st)
	}
}

func (s *Session) onData(frh *FrameHeader, data *Data) {
	payload := len(data.Data())
	if data.Padding() {
		payload = frh.Len() // credit the full on-wire length, padding included
	}

	sessionWindow := s.addRecvWindow(int32(-payload))

	st, ok := s.streams.get(frh.Stream())
	if !ok {
		// No stream will consume these bytes; return the session credit.
		if payload > 0 {
			s.addRecvWindow(int32(payload))
			swu := AcquireWindowUpdate()
			swu.SetIncrement(uint32(payload))
			s.sendControl(swu, 0, nil, nil)
		}
		if s.isLocalClosedID(frh.Stream()) || s.isRemoteClosedID(frh.Stream()) {
			rst := AcquireRstStream()
			rst.SetCode(StreamClosedError)
			s.sendControl(rst, frh.Stream(), nil, nil)
			return
		}
		s.onConnectionFailure(NewError(ProtocolError, "unexpected_data_frame"), "unexpected_data_frame")
		return
	}

	if sessionWindow < 0 {
		s.onConnectionFailure(NewError(FlowControlError, "session receive window exceeded"), "flow_control_error")
		return
	}

	if err := s.flow.OnDataReceived(s, st, payload); err != nil {
		s.onConnectionFailure(err, "flow_control_error")
		return
	}

	st.notifyData(data.Data(), data.EndStream())
	s.flow.OnDataConsumed(s, st, payload)

	if data.EndStream() && st.advance(eventReceived) {
		s.removeStream(st)
	}
}

func (s *Session) onReset(frh *FrameHeader, rst *RstStream) {
	st, ok := s.streams.get(frh.Stream())
	if !ok {
		if !s.isLocalClosedID(frh.Stream()) && !s.isRemoteClosedID(frh.Stream()) {
			s.onConnectionFailure(NewError(ProtocolError, "unexpected_rst_stream_frame"), "unexpected_rst_stream_frame")
		}
		return
	}

	st.notifyReset(rst.Code())
	st.advance(eventReceived)
	st.advance(eventAfterSend)
	s.removeStream(st)
}

func (s *Session) onSettings(frh *FrameHeader, st *Settings) {
	if st.IsAck() {
		return
	}

	s.gen.SetHeaderTableSize(st.HeaderTableSize())
	s.setPushEnabled(st.Push())
	atomic.StoreInt64(&s.maxLocalStreams, int64(st.MaxConcurrentStreams()))
	s.flow.UpdateInitialStreamWindow(s, int32(st.MaxWindowSize()), false)
	s.gen.SetMaxFrameSize(st.MaxFrameSize())
	s.gen.SetMaxHeaderListSize(st.MaxHeaderListSize())

	if s.cfg.listener != nil {
		func() {
			defer recoverListenerPanic(s, "session.OnSettings")
			s.cfg.listener.OnSettings(st)
		}()
	}

	reply := AcquireSettings()
	reply.SetAck(true)
	s.sendControl(reply, 0, nil, nil)
}

func (s *Session) onPing(frh *FrameHeader, ping *Ping) {
	if ping.IsAck() {
		var key [8]byte
		copy(key[:], ping.Data())

		s.pendingPings.mu.Lock()
		cb := s.pendingPings.m[key]
		delete(s.pendingPings.m, key)
		s.pendingPings.mu.Unlock()

		if cb != nil {
			cb(time.Since(ping.SentAt()))
		} else if s.cfg.listener != nil {
			func() {
				defer recoverListenerPanic(s, "session.OnPing")
				s.cfg.listener.OnPing(0)
			}()
		}
		return
	}

	reply := AcquirePing()
	reply.SetData(ping.Data())
	reply.SetAck(true)
	s.flusher.Prepend(newControlEntry(s, reply, 0, nil, nil))
}

func (s *Session) onGoAway(frh *FrameHeader, ga *GoAway) {
	if !s.close.goRemotelyClosed() {
		return
	}

	s.closeFrame.Store(ga.Copy())

	if s.cfg.listener != nil {
		func() {
			defer recoverListenerPanic(s, "session.OnGoAway")
			s.cfg.listener.OnGoAway(ga.Stream(), ga.Code(), ga.Data())
		}()
	}

	s.flusher.Append(&disconnectEntry{session: s, cause: nil})
}

func (s *Session) onWindowUpdate(frh *FrameHeader, wu *WindowUpdate) {
	if frh.Stream() == 0 {
		if err := s.flow.WindowUpdate(s, nil, wu); err != nil {
			s.onConnectionFailure(err, "flow_control_error")
		}
		return
	}

	st, ok := s.streams.get(frh.Stream())
	if !ok {
		return
	}

	if err := s.flow.WindowUpdate(s, st, wu); err != nil {
		rst := AcquireRstStream()
		rst.SetCode(FlowControlError)
		s.sendControl(rst, st.ID(), st, nil)
	}
}

func (s *Session) onPriority(frh *FrameHeader, pr *Priority) {
	// No dependency tree is maintained; PRIORITY is accepted and
	// otherwise ignored, per RFC 7540 5.3's allowance that
	// implementations may disregard priority signals.
}

func (s *Session) onPushPromise(frh *FrameHeader, pp *PushPromise) {
	if s.role == RoleServer {
		s.onConnectionFailure(NewError(ProtocolError, "unexpected_push_promise"), "unexpected_push_promise")
		return
	}
	// Client-side push completion is handled by the application through
	// Session.Push's returned Stream; this engine does not itself decide
	// push acceptance policy.
}

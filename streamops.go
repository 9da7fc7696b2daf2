package http2

import "sync/atomic"

// createRemoteStream admits an id the peer just opened with a HEADERS
// frame. refused=true means a RST_STREAM(REFUSED_STREAM) was already
// sent and the caller has nothing further to do; st==nil with
// refused==false means the id collides with one already in the table,
// a connection-level protocol error the caller must raise itself.
func (s *Session) createRemoteStream(id uint32) (st *Stream, refused bool) {
	max := atomic.LoadInt64(&s.maxRemoteStreams)

	for {
		packed := atomic.LoadUint64(&s.remoteCounts)
		count, closing := unpackCounts(packed)

		if max >= 0 && int64(count-closing) >= max {
			atomic.StoreUint32(&s.lastRemoteStreamID, id)
			rst := AcquireRstStream()
			rst.SetCode(RefusedStreamError)
			s.sendControl(rst, id, nil, nil)
			return nil, true
		}

		next := packCounts(count+1, closing)
		if atomic.CompareAndSwapUint64(&s.remoteCounts, packed, next) {
			break
		}
	}

	atomic.StoreUint32(&s.lastRemoteStreamID, id)

	st = newStream(id, false, s, nil)
	if !s.streams.insert(st) {
		return nil, false
	}

	s.onStreamOpened(st)

	if s.cfg.streamAcceptor != nil {
		func() {
			defer recoverListenerPanic(s, "session.StreamAcceptor")
			s.cfg.streamAcceptor(st)
		}()
	}

	return st, false
}

// createLocalStream admits a brand new application-initiated stream,
// enforcing SETTINGS_MAX_CONCURRENT_STREAMS against the peer's
// advertised limit.
func (s *Session) createLocalStream(id uint32, listener StreamListener) (*Stream, error) {
	max := atomic.LoadInt64(&s.maxLocalStreams)

	for {
		cur := atomic.LoadInt32(&s.localStreamCount)
		if max >= 0 && int64(cur) >= max {
			return nil, NewError(RefusedStreamError, "max concurrent streams reached")
		}
		if atomic.CompareAndSwapInt32(&s.localStreamCount, cur, cur+1) {
			break
		}
	}

	st := newStream(id, true, s, listener)
	if !s.streams.insert(st) {
		atomic.AddInt32(&s.localStreamCount, -1)
		return nil, ErrStreamClosed
	}

	return st, nil
}

// NewStream opens a new locally-initiated stream, sending headers as a
// HEADERS frame. Reserving the stream-id happens synchronously so two
// concurrent callers never race on ordering; encoding and the actual
// write happen off the StreamCreator's single-drainer queue so HPACK
// state stays consistent with wire order.
func (s *Session) NewStream(headers []HeaderField, endStream bool, listener StreamListener) (*Stream, error) {
	if s.IsClosed() {
		return nil, ErrSessionClosed
	}

	sl := s.creator.reserve()

	st, err := s.createLocalStream(sl.streamID, listener)
	if err != nil {
		s.creator.abandon(sl)
		return nil, err
	}

	h := AcquireHeaders()
	h.SetEndStream(endStream)
	h.SetEndHeaders(true)
	for i := range headers {
		h.AppendHeaderField(s.encoder, &headers[i], true)
	}

	s.creator.assign(sl, newControlEntry(s, h, st.id, st, nil))

	return st, nil
}

// SendHeaders replies on an already-open stream -- typically a
// server's response headers to a remote-initiated request, or
// trailers. Unlike NewStream, it never allocates a stream-id and so
// bypasses the StreamCreator entirely; ordering among a single
// stream's own frames is guaranteed by the caller issuing them in
// order, which the Flusher's FIFO then preserves.
func (s *Session) SendHeaders(st *Stream, headers []HeaderField, endStream bool) {
	h := AcquireHeaders()
	h.SetEndStream(endStream)
	h.SetEndHeaders(true)
	for i := range headers {
		h.AppendHeaderField(s.encoder, &headers[i], true)
	}

	s.sendControl(h, st.id, st, nil)
}

// Write enqueues len(data) bytes on st, fragmenting across as many DATA
// frames as the negotiated flow-control windows require.
func (s *Session) Write(st *Stream, data []byte, endStream bool, cb func(error)) {
	s.flusher.Append(newDataEntry(s, st, data, endStream, cb))
}

// Push starts a server push: promises a new stream under parent and
// returns it so the caller can immediately start writing its response.
// Returns an error if this session is not a server, the peer has
// disabled push, or the session is closed; parent itself is not checked.
func (s *Session) Push(parent *Stream, headers []HeaderField, listener StreamListener) (*Stream, error) {
	if s.role != RoleServer {
		return nil, NewError(ProtocolError, "only a server may push")
	}
	if !s.PushEnabled() {
		return nil, NewError(ProtocolError, "push disabled by peer")
	}
	if s.IsClosed() {
		return nil, ErrSessionClosed
	}

	sl := s.creator.reserve()

	st, err := s.createLocalStream(sl.streamID, listener)
	if err != nil {
		s.creator.abandon(sl)
		return nil, err
	}

	pp := AcquirePushPromise()
	pp.SetStream(st.id)

	var raw []byte
	for i := range headers {
		raw = s.encoder.AppendHeader(raw, &headers[i], true)
	}
	pp.SetHeaders(raw)
	pp.SetEndHeaders(true)

	s.creator.assign(sl, newControlEntry(s, pp, parent.id, st, nil))

	return st, nil
}

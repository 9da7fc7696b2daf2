package http2

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
)

// Session is the HTTP/2 state for one bidirectional connection. It
// multiplexes concurrent Streams over a single Endpoint, enforces flow
// control, and drives the four-state close machine.
//
// https://tools.ietf.org/html/rfc7540#section-5
type Session struct {
	role Role
	cfg  *Config

	endpoint Endpoint
	conn     net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer

	encoder *HPACK // outbound dynamic table
	decoder *HPACK // inbound dynamic table

	gen      *wireGenerator
	flusher  Flusher
	flow     FlowControlStrategy
	creator  *StreamCreator
	headers  headersHandler

	streams *streamTable

	close closeRegister

	sendWindow int64 // atomic, session-level send credit
	recvWindow int64 // atomic, session-level receive credit

	localInitialWindow  int64 // atomic, our SETTINGS_INITIAL_WINDOW_SIZE
	remoteInitialWindow int64 // atomic, peer's SETTINGS_INITIAL_WINDOW_SIZE

	localStreamCount int32 // atomic

	// remoteCounts packs (remoteStreamCount<<32 | remoteClosingCount)
	// so the admission check and increment are one CAS, per the
	// packed-atomic-pair design note.
	remoteCounts uint64 // atomic

	lastRemoteStreamID uint32 // atomic
	pushEnabled         int32 // atomic bool

	maxLocalStreams  int64 // atomic, -1 = unbounded
	maxRemoteStreams int64 // atomic, -1 = unbounded

	idleTimeNanos int64 // atomic
	bytesWritten  int64 // atomic

	closeFrame atomic.Value // *GoAway

	log     log15.Logger
	metrics Metrics

	pendingPings struct {
		mu sync.Mutex
		m  map[[8]byte]func(time.Duration)
	}
}

// NewSession builds a Session over conn and immediately starts its read
// and write loops plus the connection preface / initial SETTINGS
// exchange. Callers own closing conn indirectly through Session.Close.
func NewSession(conn net.Conn, role Role, opts ...Option) (*Session, error) {
	cfg := defaultConfig(role)
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Session{
		role:     role,
		cfg:      cfg,
		conn:     conn,
		endpoint: NewTCPEndpoint(conn, cfg.idleTimeout),
		br:       bufio.NewReader(conn),
		bw:       bufio.NewWriter(conn),
		encoder:  AcquireHPACK(),
		decoder:  AcquireHPACK(),
		streams:  newStreamTable(),
		flow:     cfg.flow,
		log:      cfg.log.New("role", role.String()),
		metrics:  cfg.metrics,
	}
	s.headers = handlerFor(role)
	s.pendingPings.m = make(map[[8]byte]func(time.Duration))

	s.sendWindow = int64(defaultWindowSize)
	s.recvWindow = int64(defaultWindowSize)
	s.localInitialWindow = int64(cfg.initialWindowSize)
	s.remoteInitialWindow = int64(defaultWindowSize)
	s.maxLocalStreams = int64(cfg.maxConcurrentStreams)
	s.maxRemoteStreams = int64(cfg.maxConcurrentStreams)
	atomic.StoreInt32(&s.pushEnabled, 1)
	s.touchIdle()

	s.gen = newWireGenerator(s.bw, s.encoder)
	s.flusher = newChannelFlusher(s, s.gen)
	s.creator = newStreamCreator(s)

	if role == RoleClient {
		if _, err := s.bw.WriteString(ConnectionPreface); err != nil {
			return nil, err
		}
	}

	initial := AcquireSettings()
	initial.SetMaxWindowSize(cfg.initialWindowSize)
	initial.SetMaxConcurrentStreams(cfg.maxConcurrentStreams)
	s.flusher.Append(newControlEntry(s, initial, 0, nil, nil))

	go s.readLoop()

	return s, nil
}

func (s *Session) initialSendWindow() uint32 { return uint32(atomic.LoadInt64(&s.remoteInitialWindow)) }
func (s *Session) initialRecvWindow() uint32 { return uint32(atomic.LoadInt64(&s.localInitialWindow)) }

func (s *Session) setLocalInitialWindow(n uint32) uint32 {
	return uint32(atomic.SwapInt64(&s.localInitialWindow, int64(n)))
}

func (s *Session) setRemoteInitialWindow(n uint32) uint32 {
	return uint32(atomic.SwapInt64(&s.remoteInitialWindow, int64(n)))
}

func (s *Session) SendWindow() int32 { return int32(atomic.LoadInt64(&s.sendWindow)) }
func (s *Session) RecvWindow() int32 { return int32(atomic.LoadInt64(&s.recvWindow)) }

func (s *Session) addSendWindow(delta int32) int32 {
	return int32(atomic.AddInt64(&s.sendWindow, int64(delta)))
}

func (s *Session) addRecvWindow(delta int32) int32 {
	return int32(atomic.AddInt64(&s.recvWindow, int64(delta)))
}

func (s *Session) debitSendWindow(n int32) int32 {
	return int32(atomic.AddInt64(&s.sendWindow, -int64(n)))
}

func (s *Session) BytesWritten() int64 { return atomic.LoadInt64(&s.bytesWritten) }

func (s *Session) addBytesWritten(n int) {
	atomic.AddInt64(&s.bytesWritten, int64(n))
	s.metrics.BytesWritten(n)
}

func (s *Session) touchIdle() {
	atomic.StoreInt64(&s.idleTimeNanos, time.Now().UnixNano())
}

func (s *Session) idleFor() time.Duration {
	last := atomic.LoadInt64(&s.idleTimeNanos)
	return time.Since(time.Unix(0, last))
}

func (s *Session) PushEnabled() bool { return atomic.LoadInt32(&s.pushEnabled) == 1 }

func (s *Session) setPushEnabled(enabled bool) {
	v := int32(0)
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&s.pushEnabled, v)
}

func (s *Session) IsClosed() bool { return s.close.load() == stateClosed }

func (s *Session) Streams() []*Stream { return s.streams.snapshot() }

func (s *Session) Stream(id uint32) (*Stream, bool) { return s.streams.get(id) }

// isLocalClosedID reports whether id belongs to this side and was
// already retired (issued, but no longer in the table) -- RFC 7540's
// "closed" classification, distinct from an id never issued at all.
func (s *Session) isLocalClosedID(id uint32) bool {
	if _, ok := s.streams.get(id); ok {
		return false
	}
	return id <= s.creator.lastIssued()
}

func (s *Session) isRemoteClosedID(id uint32) bool {
	if _, ok := s.streams.get(id); ok {
		return false
	}
	return id <= atomic.LoadUint32(&s.lastRemoteStreamID)
}

func (s *Session) onStreamOpened(st *Stream) {
	if !atomic.CompareAndSwapInt32(&st.opened, 0, 1) {
		return
	}
	s.flow.OnStreamCreated(st)
	s.metrics.StreamOpened(s.role)
}

func (s *Session) removeStream(st *Stream) {
	s.streams.remove(st.id)
	s.flow.OnStreamDestroyed(st)
	s.metrics.StreamClosed(s.role)

	if st.local {
		atomic.AddInt32(&s.localStreamCount, -1)
	} else {
		for {
			packed := atomic.LoadUint64(&s.remoteCounts)
			count, closing := unpackCounts(packed)
			next := packCounts(count, closing+1)
			if atomic.CompareAndSwapUint64(&s.remoteCounts, packed, next) {
				break
			}
		}
	}
}

func packCounts(count, closing uint32) uint64 {
	return uint64(count)<<32 | uint64(closing)
}

func unpackCounts(packed uint64) (count, closing uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// sendControl wraps a frame into a ControlEntry and hands it to the
// Flusher directly -- used for responses generated inside the dispatch
// core (RST_STREAM, WINDOW_UPDATE, SETTINGS acks, PING replies) that
// don't need the StreamCreator's ordering guarantee because they never
// open a new local stream.
func (s *Session) sendControl(fr Frame, streamID uint32, st *Stream, cb func(error)) {
	s.flusher.Append(newControlEntry(s, fr, streamID, st, cb))
}

// Ping sends a PING and reports the measured round trip to cb once the
// peer's reply arrives.
func (s *Session) Ping(cb func(time.Duration, error)) {
	ping := AcquirePing()
	ping.SetCurrentTime()

	var key [8]byte
	copy(key[:], ping.Data())

	s.pendingPings.mu.Lock()
	s.pendingPings.m[key] = func(rtt time.Duration) { cb(rtt, nil) }
	s.pendingPings.mu.Unlock()

	s.flusher.Prepend(newControlEntry(s, ping, 0, nil, nil))
}

// Settings re-negotiates connection parameters, enqueuing a SETTINGS
// frame and invoking cb once it has been flushed.
func (s *Session) Settings(update *Settings, cb func(error)) {
	s.sendControl(update, 0, nil, cb)
}

// Close initiates session shutdown: true iff this call is the one that
// actually transitioned the session out of NOT_CLOSED.
func (s *Session) Close(cause error, reason string, cb func(error)) bool {
	if !s.close.goLocallyClosed() {
		if cb != nil {
			cb(nil)
		}
		return false
	}

	ga := AcquireGoAway()
	ga.SetStream(atomic.LoadUint32(&s.lastRemoteStreamID))
	ga.SetCode(causeToErrorCode(cause))
	if len(reason) > 32 {
		reason = reason[:32]
	}
	ga.SetData([]byte(reason))

	s.log.Info("session closing", "reason", reason)
	s.metrics.SessionClosed(reason)

	s.flusher.Append(newControlEntry(s, ga, 0, nil, func(error) {
		s.flusher.Append(&disconnectEntry{session: s, cause: cause})
		if cb != nil {
			cb(nil)
		}
	}))

	return true
}

// causeToErrorCode recovers the HTTP/2 error code a connection fault was
// raised with. Every connection-level fault reaches here as either an
// already-built *ConnectionError or an eris-wrapped *Error2 from
// NewError, so both are unwrapped through the cause chain before
// falling back to INTERNAL_ERROR for a genuinely unclassified cause.
func causeToErrorCode(cause error) ErrorCode {
	if cause == nil {
		return NoError
	}
	var ce *ConnectionError
	if errors.As(cause, &ce) {
		return ce.Code
	}
	var e2 *Error2
	if errors.As(cause, &e2) {
		return e2.Code
	}
	return InternalError
}

// onConnectionFailure is the single entry point for protocol-level
// faults: every open stream is notified, then the session listener,
// then a GO_AWAY-driven close is enqueued. err is normalized into a
// *ConnectionError carrying the classified code so causeToErrorCode
// and anything else inspecting the cause later sees the real code
// without re-walking the eris chain.
func (s *Session) onConnectionFailure(err error, reason string) {
	connErr := &ConnectionError{Code: causeToErrorCode(err), Msg: reason}
	s.log.Error("connection failure", "reason", reason, "err", err)

	for _, st := range s.streams.snapshot() {
		st.notifyFailure(connErr, reason)
	}

	if s.cfg.listener != nil {
		func() {
			defer recoverListenerPanic(s, "session.OnFailure")
			s.cfg.listener.OnFailure(connErr, reason)
		}()
	}

	s.Close(connErr, reason, nil)
}

// abort is used for unrecoverable transport-level errors: it bypasses
// GO_AWAY entirely and terminates immediately.
func (s *Session) abort(cause error) {
	for _, st := range s.streams.snapshot() {
		st.notifyFailure(cause, "abort")
	}
	s.terminate(cause)
}

// terminate idempotently drives the session to CLOSED: it stops the
// Flusher (failing anything still queued), closes every stream, empties
// the stream table, and closes the Endpoint.
func (s *Session) terminate(cause error) {
	if !s.close.goClosed() {
		return
	}

	s.flusher.Terminate(cause)

	for _, st := range s.streams.clear() {
		st.notifyFailure(cause, "terminated")
	}

	s.endpoint.Close()
	ReleaseHPACK(s.encoder)
	ReleaseHPACK(s.decoder)
}

func (s *Session) onIdleTimeout() bool {
	if s.idleFor() < s.endpoint.IdleTimeout() {
		return false
	}

	switch s.close.load() {
	case stateNotClosed:
		if s.cfg.listener == nil {
			s.abort(ErrSessionClosed)
			return true
		}
		verdict := func() (v bool) {
			defer recoverListenerPanic(s, "session.OnIdleTimeout")
			return s.cfg.listener.OnIdleTimeout()
		}()
		if verdict {
			s.abort(ErrSessionClosed)
		}
		return verdict
	case stateClosed:
		return false
	default:
		s.abort(ErrSessionClosed)
		return true
	}
}

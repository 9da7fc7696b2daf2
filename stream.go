package http2

import (
	"sync"
	"sync/atomic"
	"time"
)

// streamEvent drives a Stream's own close sub-machine, distinct from
// the Session-wide closeRegister.
type streamEvent uint8

const (
	// eventBeforeSend fires just before an outbound frame carrying
	// END_STREAM is handed to the socket; the close half takes effect
	// only once the frame has actually left (eventAfterSend), so a
	// peer's reaction to seeing END_STREAM on the wire is never racing
	// ahead of our own bookkeeping.
	eventBeforeSend streamEvent = iota
	eventAfterSend
	// eventReceived fires when an inbound frame carrying END_STREAM is
	// delivered to the stream.
	eventReceived
)

// StreamListener receives the frames and lifecycle notifications for
// one stream. Implementations must not block; like Session's listener
// fan-out, panics are recovered and logged rather than propagated.
type StreamListener interface {
	OnHeaders(fields []HeaderField, endStream bool)
	OnData(data []byte, endStream bool)
	OnReset(code ErrorCode)
	OnFailure(err error, reason string)
}

// Stream is one logical request/response exchange multiplexed onto a
// Session's transport.
//
// A Stream instance must not be used from more than one goroutine at a
// time on its mutable fields below; the Session serializes access via
// the dispatch loop for ingress and via entries for egress.
type Stream struct {
	id    uint32
	local bool

	session *Session

	sendWindow int64 // atomic, signed per RFC 7540 6.9.1
	recvWindow int64 // atomic

	mu           sync.Mutex
	localClosed  bool
	remoteClosed bool
	removed      bool

	lastActivity int64 // unix nanos, atomic
	opened       int32 // atomic bool, guards onStreamOpened against firing twice

	listener StreamListener

	// attachment is an opaque slot for body-level write callbacks the
	// application layer hangs off a stream (e.g. a fasthttp.RequestCtx
	// or a response writer) without the engine needing to know its type.
	attachment interface{}
}

func newStream(id uint32, local bool, s *Session, listener StreamListener) *Stream {
	st := &Stream{
		id:       id,
		local:    local,
		session:  s,
		listener: listener,
	}
	st.sendWindow = int64(s.initialSendWindow())
	st.recvWindow = int64(s.initialRecvWindow())
	st.touch()
	return st
}

func (st *Stream) ID() uint32 { return st.id }

func (st *Stream) Local() bool { return st.local }

// Session returns the Session this stream is multiplexed on.
func (st *Stream) Session() *Session { return st.session }

func (st *Stream) Attachment() interface{} { return st.attachment }

// SetListener attaches the StreamListener that will receive this
// stream's inbound frames. Used by a server's stream acceptor, which
// only learns the application beyond a newly arrived HEADERS frame.
func (st *Stream) SetListener(l StreamListener) { st.listener = l }

func (st *Stream) SetAttachment(v interface{}) { st.attachment = v }

func (st *Stream) touch() {
	atomic.StoreInt64(&st.lastActivity, time.Now().UnixNano())
}

func (st *Stream) idleFor() time.Duration {
	last := atomic.LoadInt64(&st.lastActivity)
	return time.Since(time.Unix(0, last))
}

func (st *Stream) SendWindow() int32 { return int32(atomic.LoadInt64(&st.sendWindow)) }

func (st *Stream) RecvWindow() int32 { return int32(atomic.LoadInt64(&st.recvWindow)) }

func (st *Stream) addSendWindow(delta int32) int32 {
	return int32(atomic.AddInt64(&st.sendWindow, int64(delta)))
}

func (st *Stream) addRecvWindow(delta int32) int32 {
	return int32(atomic.AddInt64(&st.recvWindow, int64(delta)))
}

func (st *Stream) debitSendWindow(n int32) int32 {
	return int32(atomic.AddInt64(&st.sendWindow, -int64(n)))
}

// IsClosed reports whether both halves of the stream are closed; such a
// stream is eligible for removal from the session's stream table.
func (st *Stream) IsClosed() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.localClosed && st.remoteClosed
}

// advance applies a close sub-machine event, returning true the moment
// both halves become closed (signalling the caller should remove the
// stream from its session).
func (st *Stream) advance(ev streamEvent) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch ev {
	case eventAfterSend:
		st.localClosed = true
	case eventReceived:
		st.remoteClosed = true
	}

	return st.localClosed && st.remoteClosed
}

func (st *Stream) notifyHeaders(fields []HeaderField, endStream bool) {
	if st.listener == nil {
		return
	}
	defer recoverListenerPanic(st.session, "stream.OnHeaders")
	st.listener.OnHeaders(fields, endStream)
}

func (st *Stream) notifyData(data []byte, endStream bool) {
	if st.listener == nil {
		return
	}
	defer recoverListenerPanic(st.session, "stream.OnData")
	st.listener.OnData(data, endStream)
}

func (st *Stream) notifyReset(code ErrorCode) {
	if st.listener == nil {
		return
	}
	defer recoverListenerPanic(st.session, "stream.OnReset")
	st.listener.OnReset(code)
}

func (st *Stream) notifyFailure(err error, reason string) {
	if st.listener == nil {
		return
	}
	defer recoverListenerPanic(st.session, "stream.OnFailure")
	st.listener.OnFailure(err, reason)
}

package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newDispatchTestSession(t *testing.T, role Role) (*Session, *captureFlusher) {
	t.Helper()
	fl := &captureFlusher{}
	s := &Session{
		role:             role,
		cfg:              &Config{},
		streams:          newStreamTable(),
		flusher:          fl,
		metrics:          noopMetrics{},
		flow:             newDefaultFlowControl(),
		log:              defaultLogger(),
		maxLocalStreams:  -1,
		maxRemoteStreams: -1,
	}
	s.headers = handlerFor(role)
	s.localInitialWindow = int64(defaultWindowSize)
	s.remoteInitialWindow = int64(defaultWindowSize)
	s.creator = newStreamCreator(s)
	return s, fl
}

func TestServerHeadersHandlerOpensNewRemoteStream(t *testing.T) {
	s, _ := newDispatchTestSession(t, RoleServer)

	l := &recordingListener{}
	s.cfg.streamAcceptor = func(st *Stream) { st.SetListener(l) }

	s.headers.onHeaders(s, 1, []HeaderField{{}}, false)

	st, ok := s.streams.get(1)
	require.True(t, ok)
	require.False(t, st.local)
	require.Len(t, l.headers, 1)
}

func TestServerHeadersHandlerDeliversOntoExistingStream(t *testing.T) {
	s, _ := newDispatchTestSession(t, RoleServer)

	l := &recordingListener{}
	st := newStream(1, false, s, l)
	s.streams.insert(st)
	s.onStreamOpened(st)
	// Our half is already closed, so the peer's END_STREAM closes the stream.
	st.advance(eventAfterSend)

	s.headers.onHeaders(s, 1, []HeaderField{{}}, true)

	require.Len(t, l.headers, 1)
	require.True(t, st.IsClosed(), "end-stream headers on an already-open stream must advance the remote half")
	_, stillThere := s.streams.get(1)
	require.False(t, stillThere, "a stream fully closed by this headers frame must be removed")
}

func TestServerHeadersHandlerIgnoresTrailersAfterClose(t *testing.T) {
	s, _ := newDispatchTestSession(t, RoleServer)
	s.lastRemoteStreamID = 5

	require.NotPanics(t, func() {
		s.headers.onHeaders(s, 3, []HeaderField{{}}, true)
	})
	_, ok := s.streams.get(3)
	require.False(t, ok, "an id below the high-water mark that never opened must not be admitted as new")
}

func TestClientHeadersHandlerDeliversOntoKnownStream(t *testing.T) {
	s, _ := newDispatchTestSession(t, RoleClient)

	l := &recordingListener{}
	st := newStream(1, true, s, l)
	s.streams.insert(st)

	s.headers.onHeaders(s, 1, []HeaderField{{}}, false)
	require.Len(t, l.headers, 1)
}

func TestClientHeadersHandlerRejectsUnknownStream(t *testing.T) {
	s, fl := newDispatchTestSession(t, RoleClient)

	s.headers.onHeaders(s, 99, []HeaderField{{}}, false)

	require.Equal(t, stateLocallyClosed, s.close.load(), "an unexpected HEADERS frame on an unknown id must fail the connection")
	require.NotEmpty(t, fl.appended, "onConnectionFailure must enqueue a GOAWAY")
}

func TestClientHeadersHandlerIgnoresHeadersOnAKnownClosedID(t *testing.T) {
	s, _ := newDispatchTestSession(t, RoleClient)
	sl := s.creator.reserve()
	s.creator.assign(sl, newControlEntry(s, nil, sl.streamID, nil, nil))

	require.NotPanics(t, func() {
		s.headers.onHeaders(s, sl.streamID, []HeaderField{{}}, false)
	})
	require.False(t, s.IsClosed(), "a closed-but-known id is a stale frame, not a protocol violation")
}

package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newOpsTestSession(t *testing.T, role Role, maxLocal, maxRemote int64) (*Session, *captureFlusher) {
	t.Helper()
	fl := &captureFlusher{}
	s := &Session{
		role:             role,
		cfg:              &Config{},
		streams:          newStreamTable(),
		flusher:          fl,
		metrics:          noopMetrics{},
		flow:             newDefaultFlowControl(),
		encoder:          AcquireHPACK(),
		log:              defaultLogger(),
		maxLocalStreams:  maxLocal,
		maxRemoteStreams: maxRemote,
	}
	s.setPushEnabled(true)
	s.localInitialWindow = int64(defaultWindowSize)
	s.remoteInitialWindow = int64(defaultWindowSize)
	s.creator = newStreamCreator(s)
	return s, fl
}

func TestCreateLocalStreamRespectsMaxConcurrent(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleClient, 1, -1)

	st1, err := s.createLocalStream(1, nil)
	require.NoError(t, err)
	require.NotNil(t, st1)

	_, err = s.createLocalStream(3, nil)
	require.Error(t, err, "a second local stream beyond the configured max must be refused")
}

func TestCreateLocalStreamUnboundedWhenMaxIsNegative(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleClient, -1, -1)

	for id := uint32(1); id < 20; id += 2 {
		_, err := s.createLocalStream(id, nil)
		require.NoError(t, err)
	}
}

func TestCreateRemoteStreamRefusesOverMax(t *testing.T) {
	s, fl := newOpsTestSession(t, RoleServer, -1, 1)

	st, refused := s.createRemoteStream(1)
	require.False(t, refused)
	require.NotNil(t, st)

	st2, refused := s.createRemoteStream(3)
	require.True(t, refused)
	require.Nil(t, st2)
	require.Len(t, fl.appended, 1, "the refusal must enqueue exactly one RST_STREAM")

	rst, ok := fl.appended[0].(*ControlEntry).frame.(*RstStream)
	require.True(t, ok)
	require.Equal(t, RefusedStreamError, rst.Code())
}

func TestCreateRemoteStreamRunsStreamAcceptor(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleServer, -1, -1)

	var accepted *Stream
	s.cfg.streamAcceptor = func(st *Stream) { accepted = st }

	st, refused := s.createRemoteStream(1)
	require.False(t, refused)
	require.Same(t, st, accepted)
}

func TestCreateRemoteStreamAcceptorPanicIsRecovered(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleServer, -1, -1)
	s.cfg.streamAcceptor = func(st *Stream) { panic("boom") }

	require.NotPanics(t, func() {
		_, refused := s.createRemoteStream(1)
		require.False(t, refused)
	})
}

func TestNewStreamAssignsIncreasingIDsAndEnqueuesHeaders(t *testing.T) {
	s, fl := newOpsTestSession(t, RoleClient, -1, -1)

	hf := HeaderField{}
	hf.SetKey(":method")
	hf.SetValue("GET")

	st1, err := s.NewStream([]HeaderField{hf}, true, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), st1.ID())

	st2, err := s.NewStream([]HeaderField{hf}, true, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(3), st2.ID())

	require.Len(t, fl.appended, 2)
	for _, e := range fl.appended {
		_, ok := e.(*ControlEntry).frame.(*Headers)
		require.True(t, ok)
	}
}

func TestNewStreamFailsOnClosedSession(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleClient, -1, -1)
	s.close.goLocallyClosed()
	s.close.goClosed()

	_, err := s.NewStream(nil, true, nil)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestPushRejectedForClientRole(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleClient, -1, -1)
	parent, err := s.createLocalStream(1, nil)
	require.NoError(t, err)

	_, err = s.Push(parent, nil, nil)
	require.Error(t, err)
}

func TestPushRejectedWhenPeerDisabledIt(t *testing.T) {
	s, _ := newOpsTestSession(t, RoleServer, -1, -1)
	s.setPushEnabled(false)
	parent, refused := s.createRemoteStream(1)
	require.False(t, refused)

	_, pushErr := s.Push(parent, nil, nil)
	require.Error(t, pushErr)
}

func TestPushPromisesAnEvenStreamFromAServer(t *testing.T) {
	s, fl := newOpsTestSession(t, RoleServer, -1, -1)
	parent, refused := s.createRemoteStream(1)
	require.False(t, refused)

	pushed, err := s.Push(parent, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(2), pushed.ID())

	require.Len(t, fl.appended, 1)
	pp, ok := fl.appended[0].(*ControlEntry).frame.(*PushPromise)
	require.True(t, ok)
	require.Equal(t, pushed.ID(), pp.Stream())
}

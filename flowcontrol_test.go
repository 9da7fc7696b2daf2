package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newFlowTestSession(t *testing.T, fl *captureFlusher) *Session {
	t.Helper()
	s := &Session{
		streams: newStreamTable(),
		flusher: fl,
		metrics: noopMetrics{},
	}
	s.localInitialWindow = int64(defaultWindowSize)
	s.remoteInitialWindow = int64(defaultWindowSize)
	s.sendWindow = int64(defaultWindowSize)
	s.recvWindow = int64(defaultWindowSize)
	return s
}

func TestDefaultFlowControlOnDataReceivedDebitsStreamWindow(t *testing.T) {
	f := newDefaultFlowControl()
	s := newFlowTestSession(t, &captureFlusher{})
	st := newStream(1, false, s, nil)

	require.NoError(t, f.OnDataReceived(s, st, 100))
	require.Equal(t, int32(defaultWindowSize)-100, st.RecvWindow())
}

func TestDefaultFlowControlOnDataReceivedOverflowIsAnError(t *testing.T) {
	f := newDefaultFlowControl()
	s := newFlowTestSession(t, &captureFlusher{})
	st := newStream(1, false, s, nil)
	st.recvWindow = 10

	err := f.OnDataReceived(s, st, 100)
	require.Error(t, err)
}

func TestDefaultFlowControlOnDataConsumedEmitsWindowUpdateAfterThreshold(t *testing.T) {
	f := newDefaultFlowControl()
	fl := &captureFlusher{}
	s := newFlowTestSession(t, fl)
	st := newStream(1, false, s, nil)

	half := int(defaultWindowSize)/2 + 1
	require.NoError(t, f.OnDataReceived(s, st, half))
	f.OnDataConsumed(s, st, half)

	require.Len(t, fl.appended, 2, "crossing half the initial window must flush one stream and one session WINDOW_UPDATE")
}

func TestDefaultFlowControlOnDataConsumedStaysQuietBelowThreshold(t *testing.T) {
	f := newDefaultFlowControl()
	fl := &captureFlusher{}
	s := newFlowTestSession(t, fl)
	st := newStream(1, false, s, nil)

	small := 16
	require.NoError(t, f.OnDataReceived(s, st, small))
	f.OnDataConsumed(s, st, small)

	require.Empty(t, fl.appended, "small reads below half the window must not each trigger a WINDOW_UPDATE")
}

func TestDefaultFlowControlUpdateInitialStreamWindowAdjustsOpenStreams(t *testing.T) {
	f := newDefaultFlowControl()
	s := newFlowTestSession(t, &captureFlusher{})
	st := newStream(1, true, s, nil)
	s.streams.insert(st)

	before := st.SendWindow()
	f.UpdateInitialStreamWindow(s, int32(defaultWindowSize)+1000, false)

	require.Equal(t, before+1000, st.SendWindow())
	require.Equal(t, int64(defaultWindowSize)+1000, s.remoteInitialWindow)
}

func TestDefaultFlowControlWindowUpdateSession(t *testing.T) {
	f := newDefaultFlowControl()
	s := newFlowTestSession(t, &captureFlusher{})

	wu := AcquireWindowUpdate()
	wu.SetIncrement(500)

	require.NoError(t, f.WindowUpdate(s, nil, wu))
	require.Equal(t, int32(defaultWindowSize)+500, s.SendWindow())
}

func TestDefaultFlowControlWindowUpdateStreamOverflow(t *testing.T) {
	f := newDefaultFlowControl()
	fl := &captureFlusher{}
	s := newFlowTestSession(t, fl)
	st := newStream(1, true, s, nil)
	st.sendWindow = maxWindowSize

	wu := AcquireWindowUpdate()
	wu.SetIncrement(1)

	err := f.WindowUpdate(s, st, wu)
	require.Error(t, err)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	require.Equal(t, FlowControlError, streamErr.Code)
}

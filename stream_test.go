package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	headers   [][]HeaderField
	data      [][]byte
	endStream []bool
	reset     []ErrorCode
	failure   []string
}

func (l *recordingListener) OnHeaders(fields []HeaderField, endStream bool) {
	l.headers = append(l.headers, fields)
	l.endStream = append(l.endStream, endStream)
}
func (l *recordingListener) OnData(data []byte, endStream bool) {
	l.data = append(l.data, data)
	l.endStream = append(l.endStream, endStream)
}
func (l *recordingListener) OnReset(code ErrorCode)        { l.reset = append(l.reset, code) }
func (l *recordingListener) OnFailure(err error, reason string) { l.failure = append(l.failure, reason) }

func newTestStreamSession() *Session {
	s := &Session{streams: newStreamTable(), flusher: &captureFlusher{}, metrics: noopMetrics{}, log: defaultLogger()}
	s.localInitialWindow = int64(defaultWindowSize)
	s.remoteInitialWindow = int64(defaultWindowSize)
	return s
}

func TestStreamAdvanceRequiresBothHalvesClosed(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, true, s, nil)

	require.False(t, st.advance(eventAfterSend))
	require.False(t, st.IsClosed())

	require.True(t, st.advance(eventReceived))
	require.True(t, st.IsClosed())
}

func TestStreamAdvanceOrderDoesNotMatter(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, true, s, nil)

	require.False(t, st.advance(eventReceived))
	require.True(t, st.advance(eventAfterSend))
}

func TestStreamSetListenerDelivers(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, false, s, nil)

	l := &recordingListener{}
	st.SetListener(l)

	fields := []HeaderField{{}}
	st.notifyHeaders(fields, false)
	st.notifyData([]byte("body"), true)
	st.notifyReset(CancelError)
	st.notifyFailure(ErrStreamClosed, "boom")

	require.Len(t, l.headers, 1)
	require.Equal(t, [][]byte{[]byte("body")}, l.data)
	require.Equal(t, []ErrorCode{CancelError}, l.reset)
	require.Equal(t, []string{"boom"}, l.failure)
}

func TestStreamNotifyWithoutListenerDoesNotPanic(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, false, s, nil)

	require.NotPanics(t, func() {
		st.notifyHeaders(nil, false)
		st.notifyData(nil, true)
		st.notifyReset(NoError)
		st.notifyFailure(nil, "")
	})
}

func TestStreamListenerPanicIsRecovered(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, false, s, &panicListener{})

	require.NotPanics(t, func() {
		st.notifyHeaders(nil, false)
	})
}

type panicListener struct{}

func (panicListener) OnHeaders(fields []HeaderField, endStream bool) { panic("boom") }
func (panicListener) OnData(data []byte, endStream bool)             {}
func (panicListener) OnReset(code ErrorCode)                         {}
func (panicListener) OnFailure(err error, reason string)             {}

func TestOnStreamOpenedIsIdempotent(t *testing.T) {
	s := newTestStreamSession()
	st := newStream(1, true, s, nil)
	s.flow = newDefaultFlowControl()

	s.onStreamOpened(st)
	s.onStreamOpened(st)

	require.Equal(t, int32(1), st.opened)
}

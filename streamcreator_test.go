package http2

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureFlusher struct {
	mu      sync.Mutex
	appended []Entry
}

func (f *captureFlusher) Append(entry Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, entry)
	return true
}

func (f *captureFlusher) Prepend(entry Entry) { f.Append(entry) }
func (f *captureFlusher) Window(stream *Stream) {}
func (f *captureFlusher) Terminate(cause error) {}

func (f *captureFlusher) streamIDs() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint32, 0, len(f.appended))
	for _, e := range f.appended {
		ids = append(ids, e.(*ControlEntry).streamID)
	}
	return ids
}

func TestStreamCreatorReserveAllocatesOddIDsForClient(t *testing.T) {
	fl := &captureFlusher{}
	s := &Session{role: RoleClient, flusher: fl}
	sc := newStreamCreator(s)

	sl1 := sc.reserve()
	sl2 := sc.reserve()

	require.Equal(t, uint32(1), sl1.streamID)
	require.Equal(t, uint32(3), sl2.streamID)
	require.Equal(t, uint32(3), sc.lastIssued())
}

func TestStreamCreatorReserveAllocatesEvenIDsForServer(t *testing.T) {
	s := &Session{role: RoleServer, flusher: &captureFlusher{}}
	sc := newStreamCreator(s)

	sl1 := sc.reserve()
	sl2 := sc.reserve()

	require.Equal(t, uint32(2), sl1.streamID)
	require.Equal(t, uint32(4), sl2.streamID)
}

// TestStreamCreatorPreservesWireOrderDespiteOutOfOrderAssign is the core
// guarantee: slots reserved first must reach the Flusher first even when
// later-reserved slots are assigned (finish building their entry) first.
func TestStreamCreatorPreservesWireOrderDespiteOutOfOrderAssign(t *testing.T) {
	fl := &captureFlusher{}
	s := &Session{role: RoleClient, flusher: fl}
	sc := newStreamCreator(s)

	sl1 := sc.reserve()
	sl2 := sc.reserve()
	sl3 := sc.reserve()

	// Assign out of program order: 3, then 1, then 2.
	sc.assign(sl3, newControlEntry(s, nil, sl3.streamID, nil, nil))
	require.Empty(t, fl.streamIDs(), "nothing may flush until the head of the queue is filled")

	sc.assign(sl1, newControlEntry(s, nil, sl1.streamID, nil, nil))
	require.Equal(t, []uint32{1}, fl.streamIDs(), "only the filled head may flush")

	sc.assign(sl2, newControlEntry(s, nil, sl2.streamID, nil, nil))
	require.Equal(t, []uint32{1, 3, 5}, fl.streamIDs(), "filling the gap must drain the rest of the ready queue")
}

func TestStreamCreatorAbandonLetsLaterSlotsProgress(t *testing.T) {
	fl := &captureFlusher{}
	s := &Session{role: RoleClient, flusher: fl}
	sc := newStreamCreator(s)

	sl1 := sc.reserve()
	sl2 := sc.reserve()

	sc.assign(sl2, newControlEntry(s, nil, sl2.streamID, nil, nil))
	require.Empty(t, fl.streamIDs())

	sc.abandon(sl1)
	require.Equal(t, []uint32{3}, fl.streamIDs(), "abandoning the blocking head must unblock the queue")
}

package http2

import "sync"

// streamTable is the concurrent stream-id -> *Stream map a Session
// owns: insert, get, remove, len, snapshot and clear. The table never
// iterates under lock for long (snapshot copies the streams out first)
// since the dispatch loop must never block.
type streamTable struct {
	mu      sync.RWMutex
	streams map[uint32]*Stream
}

func newStreamTable() *streamTable {
	return &streamTable{streams: make(map[uint32]*Stream)}
}

// insert adds st under its id. Returns false if the id is already
// present, which the caller must treat as "duplicate stream" (a
// connection error for remote streams, a local programming error for
// local ones — both per RFC 7540 5.1.1).
func (t *streamTable) insert(st *Stream) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.streams[st.id]; ok {
		return false
	}
	t.streams[st.id] = st
	return true
}

func (t *streamTable) get(id uint32) (*Stream, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.streams[id]
	return st, ok
}

func (t *streamTable) remove(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, id)
}

func (t *streamTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.streams)
}

// snapshot returns every stream currently in the table. Used for
// fan-out during failure/abort and for introspection; never held
// across dispatch.
func (t *streamTable) snapshot() []*Stream {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Stream, 0, len(t.streams))
	for _, st := range t.streams {
		out = append(out, st)
	}
	return out
}

// clear empties the table, returning what was in it so the caller can
// still notify/close each stream after dropping the lock.
func (t *streamTable) clear() []*Stream {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Stream, 0, len(t.streams))
	for _, st := range t.streams {
		out = append(out, st)
	}
	t.streams = make(map[uint32]*Stream)
	return out
}

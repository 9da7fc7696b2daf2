package http2

import (
	"sync"
	"sync/atomic"
)

// slot is a reserved position in the StreamCreator's FIFO queue. Its
// StreamID is assigned the instant the slot is reserved, before the
// caller has necessarily built the entry that will carry it — that is
// what lets HEADERS leave the wire in strictly increasing stream-id
// order even though the goroutines building those HEADERS can finish
// in any order.
type slot struct {
	streamID uint32
	entry    Entry // nil until assign() is called
}

// StreamCreator allocates local stream-ids and guarantees their
// corresponding egress entries reach the Flusher in id order, per
// RFC 7540 5.1.1's requirement that a HEADERS frame's HPACK state
// depends on frames for lower stream-ids having already been sent.
//
// https://tools.ietf.org/html/rfc7540#section-5.1.1
type StreamCreator struct {
	session *Session

	mu       sync.Mutex
	nextID   uint32
	queue    []*slot
	flushing bool

	issued uint32 // atomic, highest stream-id handed out so far
}

func newStreamCreator(s *Session) *StreamCreator {
	return &StreamCreator{
		session: s,
		nextID:  s.role.initialStreamID(),
	}
}

// reserve assigns the next local stream-id and appends an empty slot to
// the FIFO. The critical section is O(1): no blocking work happens
// while mu is held.
func (sc *StreamCreator) reserve() *slot {
	sc.mu.Lock()
	id := sc.nextID
	sc.nextID += 2
	sl := &slot{streamID: id}
	sc.queue = append(sc.queue, sl)
	sc.mu.Unlock()

	atomic.StoreUint32(&sc.issued, id)

	return sl
}

// lastIssued returns the highest local stream-id handed out so far, 0
// if none yet. Used to classify an id as "closed" vs "unknown" per
// RFC 7540's distinction.
func (sc *StreamCreator) lastIssued() uint32 {
	return atomic.LoadUint32(&sc.issued)
}

// assign fills in sl's entry and drains the FIFO. Call this once the
// possibly-blocking work of constructing entry (building the Stream,
// updating counters) has completed outside the critical section.
func (sc *StreamCreator) assign(sl *slot, entry Entry) {
	sl.entry = entry
	sc.flush()
}

// abandon removes sl from the queue without an entry, used when stream
// construction failed before an entry could be built. flush is still
// called so any slots behind this one in program order but already
// filled can progress.
func (sc *StreamCreator) abandon(sl *slot) {
	sc.mu.Lock()
	for i, q := range sc.queue {
		if q == sl {
			sc.queue = append(sc.queue[:i], sc.queue[i+1:]...)
			break
		}
	}
	sc.mu.Unlock()

	sc.flush()
}

// flush is the single-drainer discipline: whichever goroutine arrives
// first claims the flushing marker and pops slots from the head while
// they have an assigned entry; everyone else returns immediately,
// trusting the claimer (or a later assign on the slot blocking it) to
// make progress.
func (sc *StreamCreator) flush() {
	sc.mu.Lock()
	if sc.flushing {
		sc.mu.Unlock()
		return
	}
	sc.flushing = true

	for len(sc.queue) > 0 && sc.queue[0].entry != nil {
		entry := sc.queue[0].entry
		sc.queue = sc.queue[1:]
		sc.mu.Unlock()

		sc.session.flusher.Append(entry)

		sc.mu.Lock()
	}

	sc.flushing = false
	sc.mu.Unlock()
}

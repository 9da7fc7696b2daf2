package http2

import "sync/atomic"

// closeState is the four-valued register driving a Session's shutdown
// sequencing.
//
// https://tools.ietf.org/html/rfc7540#section-6.8
type closeState int32

const (
	stateNotClosed closeState = iota
	stateLocallyClosed
	stateRemotelyClosed
	stateClosed
)

func (s closeState) String() string {
	switch s {
	case stateNotClosed:
		return "NOT_CLOSED"
	case stateLocallyClosed:
		return "LOCALLY_CLOSED"
	case stateRemotelyClosed:
		return "REMOTELY_CLOSED"
	case stateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// closeRegister wraps one int32 atomic. Every transition is a single
// compare-and-swap; there is no lock covering the close machine.
type closeRegister struct {
	state int32
}

func (r *closeRegister) load() closeState {
	return closeState(atomic.LoadInt32(&r.state))
}

func (r *closeRegister) compareAndSwap(from, to closeState) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

// goLocallyClosed transitions NOT_CLOSED -> LOCALLY_CLOSED. Returns
// false if the session was not in NOT_CLOSED (app called Close twice,
// or the peer already closed first).
func (r *closeRegister) goLocallyClosed() bool {
	return r.compareAndSwap(stateNotClosed, stateLocallyClosed)
}

// goRemotelyClosed transitions NOT_CLOSED -> REMOTELY_CLOSED on receipt
// of a peer GO_AWAY.
func (r *closeRegister) goRemotelyClosed() bool {
	return r.compareAndSwap(stateNotClosed, stateRemotelyClosed)
}

// goClosed transitions any non-CLOSED state to CLOSED. Idempotent:
// returns false if already CLOSED.
func (r *closeRegister) goClosed() bool {
	for {
		cur := r.load()
		if cur == stateClosed {
			return false
		}
		if r.compareAndSwap(cur, stateClosed) {
			return true
		}
	}
}

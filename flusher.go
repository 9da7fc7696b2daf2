package http2

import "sync"

// channelFlusher is the default Flusher: a single goroutine draining a
// FIFO of Entry values against a Generator, parking DataEntry values
// that report a blocked flow-control window instead of busy-retrying
// them, and waking only the parked entries a WINDOW_UPDATE actually
// affects.
type channelFlusher struct {
	session *Session
	gen     Generator

	mu         sync.Mutex
	queue      []Entry
	pending    map[*Stream][]Entry // entries parked on a blocked window
	terminated bool
	cause      error

	wake chan struct{}
	done chan struct{}
}

func newChannelFlusher(s *Session, gen Generator) *channelFlusher {
	f := &channelFlusher{
		session: s,
		gen:     gen,
		pending: make(map[*Stream][]Entry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *channelFlusher) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Append enqueues entry at the tail. Returns false if the Flusher has
// already been terminated, in which case the caller should fail entry
// itself.
func (f *channelFlusher) Append(entry Entry) bool {
	f.mu.Lock()
	if f.terminated {
		f.mu.Unlock()
		return false
	}
	f.queue = append(f.queue, entry)
	f.mu.Unlock()

	f.signal()
	return true
}

// Prepend gives entry priority over everything already queued; used for
// PING replies so an application backlog never skews round-trip
// measurement.
func (f *channelFlusher) Prepend(entry Entry) {
	f.mu.Lock()
	if f.terminated {
		f.mu.Unlock()
		return
	}
	f.queue = append([]Entry{entry}, f.queue...)
	f.mu.Unlock()

	f.signal()
}

// Window re-queues every entry parked against stream, called by the
// dispatch core once an inbound WINDOW_UPDATE frees credit for it.
func (f *channelFlusher) Window(stream *Stream) {
	f.mu.Lock()
	parked := f.pending[stream]
	if len(parked) == 0 {
		f.mu.Unlock()
		return
	}
	delete(f.pending, stream)
	f.queue = append(f.queue, parked...)
	f.mu.Unlock()

	f.signal()
}

// Terminate fails every queued and parked entry with cause and stops
// the write loop. Idempotent.
func (f *channelFlusher) Terminate(cause error) {
	f.mu.Lock()
	if f.terminated {
		f.mu.Unlock()
		return
	}
	f.terminated = true
	f.cause = cause
	queued := f.queue
	f.queue = nil
	pending := f.pending
	f.pending = make(map[*Stream][]Entry)
	f.mu.Unlock()

	for _, e := range queued {
		e.failed(cause)
	}
	for _, entries := range pending {
		for _, e := range entries {
			e.failed(cause)
		}
	}

	close(f.done)
}

func (f *channelFlusher) run() {
	for {
		entry, ok := f.next()
		if !ok {
			select {
			case <-f.wake:
				continue
			case <-f.done:
				return
			}
		}

		entry.beforeSend()

		progressed, err := entry.generate(f.gen)
		switch {
		case err != nil:
			entry.failed(err)
		case !progressed:
			f.park(entry)
		default:
			entry.succeeded()
		}
	}
}

func (f *channelFlusher) next() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.terminated || len(f.queue) == 0 {
		return nil, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e, true
}

func (f *channelFlusher) park(entry Entry) {
	st := entry.stream()
	if st == nil {
		// Nothing to wake this on later; fail it rather than leak it.
		entry.failed(ErrSessionClosed)
		return
	}

	f.mu.Lock()
	f.pending[st] = append(f.pending[st], entry)
	f.mu.Unlock()
}

package http2

import (
	"sync"

	"golang.org/x/net/http2/hpack"
)

// HPACK wraps golang.org/x/net/http2/hpack's encoder and decoder with the
// pooled HeaderField type the rest of the frame layer already speaks.
//
// A HPACK value is stateful: it owns one dynamic table shared across every
// HEADERS/CONTINUATION block on a connection, so one HPACK must be kept per
// direction per session for its lifetime, never per-request.
type HPACK struct {
	enc *hpack.Encoder
	buf []byte

	dec    *hpack.Decoder
	fields []HeaderField
}

var hpackPool = sync.Pool{
	New: func() interface{} {
		return NewHPACK()
	},
}

// NewHPACK builds a fresh encoder/decoder pair with the RFC default
// dynamic table size. Most callers should use AcquireHPACK instead.
func NewHPACK() *HPACK {
	hp := &HPACK{}
	hp.enc = hpack.NewEncoder(&hpackBufWriter{hp: hp})
	hp.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
	return hp
}

// AcquireHPACK gets a HPACK encoder/decoder pair from the pool. Release it
// with ReleaseHPACK only once the session it was serving is gone, since
// releasing mid-connection would drop dynamic table state a peer still
// references.
func AcquireHPACK() *HPACK {
	return hpackPool.Get().(*HPACK)
}

// ReleaseHPACK puts hp back into the pool after resetting its dynamic
// tables to the RFC defaults.
func ReleaseHPACK(hp *HPACK) {
	hp.enc = hpack.NewEncoder(&hpackBufWriter{hp: hp})
	hp.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
	hpackPool.Put(hp)
}

// SetMaxTableSize resizes the dynamic table used when decoding header
// blocks received from the peer.
func (hp *HPACK) SetMaxTableSize(size uint32) {
	hp.dec.SetMaxDynamicTableSize(size)
}

// SetMaxEncoderTableSize bounds the dynamic table this HPACK uses when
// encoding outgoing header blocks, matching a peer-advertised
// SETTINGS_HEADER_TABLE_SIZE.
func (hp *HPACK) SetMaxEncoderTableSize(size uint32) {
	hp.enc.SetMaxDynamicTableSize(size)
}

type hpackBufWriter struct {
	hp *HPACK
}

func (w *hpackBufWriter) Write(p []byte) (int, error) {
	w.hp.buf = append(w.hp.buf, p...)
	return len(p), nil
}

// AppendHeader encodes hf onto dst using this HPACK's encoder state and
// returns the extended slice. When store is false the field is encoded
// with "never indexed" semantics so it never lands in the dynamic table.
func (hp *HPACK) AppendHeader(dst []byte, hf *HeaderField, store bool) []byte {
	hp.buf = hp.buf[:0]

	sensitive := hf.IsSensible() || !store
	hp.enc.WriteField(hpack.HeaderField{
		Name:      hf.Key(),
		Value:     hf.Value(),
		Sensitive: sensitive,
	})

	return append(dst, hp.buf...)
}

// DecodeFields decodes a complete header block (HEADERS payload plus any
// CONTINUATION payloads already concatenated) into HeaderField values.
// The returned slice is owned by hp and is only valid until the next call
// to DecodeFields.
func (hp *HPACK) DecodeFields(src []byte) ([]HeaderField, error) {
	hp.fields = hp.fields[:0]

	hp.dec.SetEmitFunc(func(f hpack.HeaderField) {
		hp.fields = append(hp.fields, HeaderField{
			key:      []byte(f.Name),
			value:    []byte(f.Value),
			sensible: f.Sensitive,
		})
	})

	if _, err := hp.dec.Write(src); err != nil {
		return nil, err
	}
	if err := hp.dec.Close(); err != nil {
		return nil, err
	}

	return hp.fields, nil
}

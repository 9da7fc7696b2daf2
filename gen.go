package http2

import "bufio"

// wireGenerator is the concrete Generator: it serializes frames through
// the pooled FrameHeader/Frame family directly onto a bufio.Writer.
// Header blocks arrive already HPACK-encoded; enc is held only to apply
// the peer's SETTINGS_HEADER_TABLE_SIZE to the encoder.
type wireGenerator struct {
	w   *bufio.Writer
	enc *HPACK

	maxFrameSize      uint32 // peer's SETTINGS_MAX_FRAME_SIZE, bounds an outbound DATA frame
	maxHeaderListSize uint32 // peer's SETTINGS_MAX_HEADER_LIST_SIZE, 0 = unbounded
}

func newWireGenerator(w *bufio.Writer, enc *HPACK) *wireGenerator {
	return &wireGenerator{w: w, enc: enc, maxFrameSize: defaultMaxFrameSize}
}

func (g *wireGenerator) Control(fr Frame, stream uint32) (int, error) {
	if g.maxHeaderListSize > 0 {
		if block := headerBlockOf(fr); uint32(len(block)) > g.maxHeaderListSize {
			return 0, ErrPayloadExceeds
		}
	}

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)

	frh.SetStream(stream)
	frh.SetBody(fr)

	n, err := frh.WriteTo(g.w)
	if err != nil {
		return int(n), err
	}

	return int(n), g.w.Flush()
}

// headerBlockOf returns the HPACK block carried by a HEADERS,
// PUSH_PROMISE or CONTINUATION frame, nil for anything else.
func headerBlockOf(fr Frame) []byte {
	switch f := fr.(type) {
	case *Headers:
		return f.Headers()
	case *PushPromise:
		return f.Headers()
	case *Continuation:
		return f.Headers()
	}
	return nil
}

func (g *wireGenerator) Data(data []byte, stream uint32, endStream bool) (int, error) {
	if g.maxFrameSize > 0 && uint32(len(data)) > g.maxFrameSize {
		return 0, ErrPayloadExceeds
	}

	d := AcquireData()
	defer ReleaseData(d)

	d.SetData(data)
	d.SetEndStream(endStream)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)

	frh.SetStream(stream)
	frh.SetBody(d)

	n, err := frh.WriteTo(g.w)
	if err != nil {
		return int(n), err
	}

	return int(n), g.w.Flush()
}

func (g *wireGenerator) SetHeaderTableSize(size uint32) {
	g.enc.SetMaxEncoderTableSize(size)
}

// SetMaxFrameSize records the peer's SETTINGS_MAX_FRAME_SIZE so Data
// refuses to emit a single DATA frame larger than the peer advertised
// it can accept.
func (g *wireGenerator) SetMaxFrameSize(size uint32) {
	if size == 0 {
		return
	}
	g.maxFrameSize = size
}

func (g *wireGenerator) MaxFrameSize() uint32 { return g.maxFrameSize }

// SetMaxHeaderListSize records the peer's SETTINGS_MAX_HEADER_LIST_SIZE
// so Control refuses to emit a header block beyond it.
func (g *wireGenerator) SetMaxHeaderListSize(size uint32) {
	g.maxHeaderListSize = size
}

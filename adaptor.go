package http2

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"
)

// FasthttpRequestHeader folds one decoded HeaderField into req, mapping
// HTTP/2 pseudo-headers onto the fields fasthttp.Request already knows
// about. Used by an application StreamListener that wants a familiar
// *fasthttp.Request/*fasthttp.Response pair instead of raw HeaderFields.
func FasthttpRequestHeader(hf *HeaderField, req *fasthttp.Request) {
	k, v := hf.KeyBytes(), hf.ValueBytes()

	if !hf.IsPseudo() &&
		!(bytes.Equal(k, StringUserAgent) || bytes.Equal(k, StringContentType)) {
		req.Header.AddBytesKV(k, v)
		return
	}

	if hf.IsPseudo() {
		if bytes.Equal(k, StringPath) {
			req.SetRequestURIBytes(v)
			return
		}
		k = k[1:]
	}

	if len(k) == 0 {
		return
	}

	switch k[0] {
	case 'm': // method
		req.Header.SetMethodBytes(v)
	case 's': // scheme
		req.URI().SetSchemeBytes(v)
	case 'a': // authority
		req.URI().SetHostBytes(v)
		req.Header.AddBytesV("Host", v)
	case 'u': // user-agent
		req.Header.SetUserAgentBytes(v)
	case 'c': // content-type
		req.Header.SetContentTypeBytes(v)
	}
}

// FasthttpResponseHeaders encodes res's status, content-length and
// remaining header set as HPACK-ready HeaderFields appended to dst,
// the mirror operation of FasthttpRequestHeader for the reply path.
func FasthttpResponseHeaders(enc *HPACK, res *fasthttp.Response, dst []byte) []byte {
	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	hf.SetKeyBytes(StringStatus)
	hf.SetValue(strconv.Itoa(res.Header.StatusCode()))
	dst = enc.AppendHeader(dst, hf, true)

	hf.SetKeyBytes(StringContentLength)
	hf.SetValue(strconv.Itoa(len(res.Body())))
	dst = enc.AppendHeader(dst, hf, true)

	res.Header.VisitAll(func(k, v []byte) {
		hf.SetBytes(ToLower(append([]byte(nil), k...)), v)
		dst = enc.AppendHeader(dst, hf, true)
	})

	return dst
}

// SendFasthttpResponse replies on st with res's status, headers and
// body in one HEADERS frame followed by the body as DATA frames, split
// as the flow-control windows and the peer's max frame size require.
func (s *Session) SendFasthttpResponse(st *Stream, res *fasthttp.Response) {
	h := AcquireHeaders()
	h.SetEndHeaders(true)

	body := res.Body()
	h.SetEndStream(len(body) == 0)
	h.rawHeaders = FasthttpResponseHeaders(s.encoder, res, h.rawHeaders[:0])

	s.sendControl(h, st.id, st, nil)

	if len(body) > 0 {
		s.Write(st, body, true, nil)
	}
}

package http2

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorCode is one of the HTTP/2 error codes carried by RST_STREAM and
// GOAWAY frames.
//
// https://tools.ietf.org/html/rfc7540#section-7
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectError         ErrorCode = 0xa
	EnhanceYourCalmError ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11Required       ErrorCode = 0xd
)

var errorCodeNames = map[ErrorCode]string{
	NoError:              "NO_ERROR",
	ProtocolError:        "PROTOCOL_ERROR",
	InternalError:        "INTERNAL_ERROR",
	FlowControlError:     "FLOW_CONTROL_ERROR",
	SettingsTimeoutError: "SETTINGS_TIMEOUT",
	StreamClosedError:    "STREAM_CLOSED",
	FrameSizeError:       "FRAME_SIZE_ERROR",
	RefusedStreamError:   "REFUSED_STREAM",
	CancelError:          "CANCEL",
	CompressionError:     "COMPRESSION_ERROR",
	ConnectError:         "CONNECT_ERROR",
	EnhanceYourCalmError: "ENHANCE_YOUR_CALM",
	InadequateSecurity:   "INADEQUATE_SECURITY",
	HTTP11Required:       "HTTP_1_1_REQUIRED",
}

func (code ErrorCode) String() string {
	if name, ok := errorCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(code))
}

// Error2 is an error carrying an HTTP/2 error code, as delivered by a
// peer's RST_STREAM or GOAWAY frame. Its name avoids colliding with the
// Error() method some frame types already expose for debugging.
type Error2 struct {
	Code ErrorCode
	Msg  string
}

func (e *Error2) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError builds an error carrying code, wrapped with eris so callers
// further up the stack keep a stack trace to where the protocol
// violation was first observed.
func NewError(code ErrorCode, msg string) error {
	return eris.Wrap(&Error2{Code: code, Msg: msg}, "http2")
}

// StreamError reports that a single stream must be reset; the session
// and its other streams are unaffected.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %d: %s", e.StreamID, e.Code)
}

// ConnectionError reports that the whole session is no longer usable
// and a GOAWAY must be sent.
type ConnectionError struct {
	Code ErrorCode
	Msg  string
}

func (e *ConnectionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("connection error: %s", e.Code)
	}
	return fmt.Sprintf("connection error: %s: %s", e.Code, e.Msg)
}

var (
	ErrUnknowFrameType = eris.New("http2: unknown frame type")
	ErrZeroPayload     = eris.New("http2: frame payload len = 0")
	ErrBadPreface      = eris.New("http2: bad connection preface")
	ErrFrameMismatch   = eris.New("http2: frame type mismatch from called function")
	ErrMissingBytes    = eris.New("http2: frame is missing required bytes")
	ErrPayloadExceeds  = eris.New("http2: frame payload exceeds the negotiated maximum size")
	ErrSessionClosed   = eris.New("http2: session is closed")
	ErrStreamClosed    = eris.New("http2: stream is closed")
	ErrExhaustedIDs    = eris.New("http2: stream identifier space exhausted")
)

package http2

// Role distinguishes the two session variants named in RFC 7540: a
// client initiates streams with odd ids and receives server push; a
// server accepts connections, opens streams with even ids, and is the
// only side allowed to push.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// initialStreamID returns the seed a Session's local stream-id counter
// starts from: 1 for a client (RFC 7540 5.1.1), 2 for a server.
func (r Role) initialStreamID() uint32 {
	if r == RoleServer {
		return 2
	}
	return 1
}

// headersHandler is the per-role specialization of HEADERS ingress
// handling the distilled design called out as the one place client and
// server sessions actually differ (RFC 7540 8.1 request/response
// framing is asymmetric: only a server accepts a brand new remote
// stream from HEADERS; a client only ever receives a response or a
// pushed stream's headers on an id it already knows).
type headersHandler interface {
	onHeaders(s *Session, streamID uint32, fields []HeaderField, endStream bool)
}

type serverHeadersHandler struct{}

type clientHeadersHandler struct{}

func handlerFor(role Role) headersHandler {
	if role == RoleServer {
		return serverHeadersHandler{}
	}
	return clientHeadersHandler{}
}

package http2

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TCPEndpoint adapts a net.Conn (plain TCP, or TLS after ALPN
// negotiated "h2") to the Endpoint interface a Session needs.
type TCPEndpoint struct {
	conn        net.Conn
	idleTimeout time.Duration
	open        int32
}

// NewTCPEndpoint wraps conn, which may already be a *tls.Conn (for
// ALPN "h2") or a plain *net.TCPConn (for "h2c" prior knowledge).
func NewTCPEndpoint(conn net.Conn, idleTimeout time.Duration) *TCPEndpoint {
	return &TCPEndpoint{conn: conn, idleTimeout: idleTimeout, open: 1}
}

// ShutdownOutput half-closes the write side after a GOAWAY has been
// flushed, letting the session keep reading any straggler frames the
// peer had already in flight.
func (e *TCPEndpoint) ShutdownOutput() error {
	if cw, ok := e.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (e *TCPEndpoint) Close() error {
	if !atomic.CompareAndSwapInt32(&e.open, 1, 0) {
		return nil
	}
	return e.conn.Close()
}

func (e *TCPEndpoint) IsOpen() bool {
	return atomic.LoadInt32(&e.open) == 1
}

func (e *TCPEndpoint) IdleTimeout() time.Duration {
	return e.idleTimeout
}

func (e *TCPEndpoint) LocalAddr() net.Addr  { return e.conn.LocalAddr() }
func (e *TCPEndpoint) RemoteAddr() net.Addr { return e.conn.RemoteAddr() }

// NegotiateTLS performs a TLS handshake over conn and confirms the peer
// selected ALPN protocol "h2", failing closed otherwise since this
// engine does not speak HTTP/1.1.
func NegotiateTLS(conn net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	if cfg.NextProtos == nil {
		cloned := cfg.Clone()
		cloned.NextProtos = []string{H2TLSProto}
		cfg = cloned
	}

	tlsConn := tls.Server(conn, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}

	if tlsConn.ConnectionState().NegotiatedProtocol != H2TLSProto {
		tlsConn.Close()
		return nil, NewError(ProtocolError, "peer did not negotiate h2 via ALPN")
	}

	return tlsConn, nil
}

// NewAutocertTLSConfig builds a tls.Config that fetches and renews
// certificates for hosts from Let's Encrypt, caching them under
// cacheDir, and advertises "h2" via ALPN so a NegotiateTLS handshake
// against it settles on HTTP/2.
func NewAutocertTLSConfig(cacheDir string, hosts ...string) *tls.Config {
	mgr := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}

	cfg := mgr.TLSConfig()
	cfg.NextProtos = append([]string{H2TLSProto}, cfg.NextProtos...)
	return cfg
}

// DetectPriorKnowledge peeks the connection preface off a plaintext
// listener to distinguish an h2c prior-knowledge client from some other
// protocol, without consuming bytes the caller still needs to read.
func DetectPriorKnowledge(br interface {
	Peek(n int) ([]byte, error)
}) bool {
	preface, err := br.Peek(len(ConnectionPreface))
	if err != nil {
		return false
	}
	return string(preface) == ConnectionPreface
}

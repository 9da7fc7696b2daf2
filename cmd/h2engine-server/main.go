package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/leaanthony/clir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	http2 "github.com/domsolutions/h2engine"
)

func main() {
	var addr string
	var certFile, keyFile string
	var metricsAddr string
	var maxStreams int

	cli := clir.NewCli("h2engine-server", "Accepts HTTP/2 connections and echoes every request stream", "v0.1.0")

	serveCmd := cli.NewSubCommand("serve", "Run the server")
	serveCmd.StringFlag("addr", "Address to listen on", &addr)
	serveCmd.StringFlag("cert", "TLS certificate file", &certFile)
	serveCmd.StringFlag("key", "TLS key file", &keyFile)
	serveCmd.StringFlag("metrics-addr", "Address to serve /metrics on, empty disables it", &metricsAddr)
	serveCmd.IntFlag("max-streams", "SETTINGS_MAX_CONCURRENT_STREAMS advertised to peers", &maxStreams)
	serveCmd.Action(func() error {
		if addr == "" {
			addr = ":8443"
		}
		if maxStreams == 0 {
			maxStreams = 250
		}

		var metrics http2.Metrics
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			metrics = http2.NewPrometheusMetrics(reg)
			go func() {
				log.Printf("metrics listening on %s", metricsAddr)
				http.ListenAndServe(metricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			}()
		}

		return runServer(addr, certFile, keyFile, uint32(maxStreams), metrics)
	})

	if err := cli.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(addr, certFile, keyFile string, maxStreams uint32, metrics http2.Metrics) error {
	var ln net.Listener
	var err error

	plaintext := certFile == "" || keyFile == ""
	if plaintext {
		ln, err = net.Listen("tcp", addr)
	} else {
		cert, cerr := tls.LoadX509KeyPair(certFile, keyFile)
		if cerr != nil {
			return cerr
		}
		cfg := &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{http2.H2TLSProto}}
		ln, err = tls.Listen("tcp", addr, cfg)
	}
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Printf("h2engine-server listening on %s (tls=%v)", addr, !plaintext)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		ln.Close()
	}()

	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return aerr
		}

		opts := []http2.Option{
			http2.WithMaxConcurrentStreams(maxStreams),
			http2.WithStreamAcceptor(acceptEchoStream),
		}
		if metrics != nil {
			opts = append(opts, http2.WithMetrics(metrics))
		}

		go serveConn(conn, opts)
	}
}

func serveConn(conn net.Conn, opts []http2.Option) {
	if _, err := http2.NewSession(conn, http2.RoleServer, opts...); err != nil {
		log.Printf("session setup failed: %v", err)
		conn.Close()
		return
	}
	log.Printf("session established with %s", conn.RemoteAddr())
}

// acceptEchoStream attaches an echoStream to every request the peer
// opens: it mirrors the request body back once headers and the full
// body have arrived, with a 200 status and no other processing.
func acceptEchoStream(st *http2.Stream) {
	st.SetListener(&echoStream{st: st})
}

type echoStream struct {
	st   *http2.Stream
	body []byte
}

func (e *echoStream) OnHeaders(fields []http2.HeaderField, endStream bool) {
	if !endStream {
		return
	}
	e.respond()
}

func (e *echoStream) OnData(data []byte, endStream bool) {
	e.body = append(e.body, data...)
	if endStream {
		e.respond()
	}
}

func (e *echoStream) OnReset(code http2.ErrorCode) {
	log.Printf("stream %d reset by peer: %s", e.st.ID(), code)
}

func (e *echoStream) OnFailure(err error, reason string) {
	log.Printf("stream %d failed: %s: %v", e.st.ID(), reason, err)
}

func (e *echoStream) respond() {
	status := http2.HeaderField{}
	status.SetKeyBytes(http2.StringStatus)
	status.SetValue("200")

	e.st.Session().SendHeaders(e.st, []http2.HeaderField{status}, len(e.body) == 0)
	if len(e.body) > 0 {
		e.st.Session().Write(e.st, e.body, true, nil)
	}
}

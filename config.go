package http2

import (
	"time"

	"github.com/inconshreveable/log15"
)

const (
	defaultIdleTimeout = 5 * time.Minute
	defaultWriteThreshold = 32 * 1024
)

// Config holds the tunables a Session is built with. Zero value is
// never used directly; NewSession always starts from defaultConfig and
// applies Options over it.
type Config struct {
	role Role

	maxConcurrentStreams uint32
	initialWindowSize    uint32
	idleTimeout          time.Duration
	writeThreshold       int

	log     log15.Logger
	metrics Metrics
	flow    FlowControlStrategy

	listener SessionListener

	// streamAcceptor is invoked for every remote-initiated stream right
	// after it is admitted, so a server can attach a StreamListener
	// before any HEADERS/DATA is delivered to it.
	streamAcceptor func(*Stream)
}

func defaultConfig(role Role) *Config {
	return &Config{
		role:                 role,
		maxConcurrentStreams: defaultConcurrentStreams,
		initialWindowSize:    defaultWindowSize,
		idleTimeout:          defaultIdleTimeout,
		writeThreshold:       defaultWriteThreshold,
		log:                  defaultLogger(),
		metrics:              noopMetrics{},
		flow:                 newDefaultFlowControl(),
	}
}

// Option configures a Session at construction time.
type Option func(*Config)

func WithMaxConcurrentStreams(n uint32) Option {
	return func(c *Config) { c.maxConcurrentStreams = n }
}

func WithInitialWindowSize(n uint32) Option {
	return func(c *Config) { c.initialWindowSize = n }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.idleTimeout = d }
}

func WithWriteThreshold(n int) Option {
	return func(c *Config) { c.writeThreshold = n }
}

func WithLogger(l log15.Logger) Option {
	return func(c *Config) { c.log = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Config) { c.metrics = m }
}

func WithFlowControlStrategy(f FlowControlStrategy) Option {
	return func(c *Config) { c.flow = f }
}

func WithSessionListener(l SessionListener) Option {
	return func(c *Config) { c.listener = l }
}

// WithStreamAcceptor registers the callback a server uses to attach a
// StreamListener to each newly admitted remote stream. Client sessions
// have no use for it since their streams are always created locally
// through NewStream/Push, which already take a listener directly.
func WithStreamAcceptor(fn func(*Stream)) Option {
	return func(c *Config) { c.streamAcceptor = fn }
}

package http2

import (
	"os"

	"github.com/inconshreveable/log15"
)

// defaultLogger returns a log15 logger writing terminal-format records
// at Info level and above to stderr.
func defaultLogger() log15.Logger {
	root := log15.New()
	root.SetHandler(log15.LvlFilterHandler(
		log15.LvlInfo,
		log15.StreamHandler(os.Stderr, log15.TerminalFormat()),
	))
	return root
}

func recoverListenerPanic(s *Session, where string) {
	if r := recover(); r != nil {
		s.log.Warn("listener panicked", "where", where, "panic", r)
	}
}

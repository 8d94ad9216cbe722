package broadcastd

import (
	"log"

	"github.com/soundwaveio/syncaudio/support/logging"
)

// stdLogger adapts the standard library's log.Logger to logging.L, for
// daemon deployments that don't have a structured logging pipeline wired in
// front of this process.
type stdLogger struct {
	*log.Logger
	verbose bool
}

func (l *stdLogger) Error(args ...interface{})                 { l.Println(args...) }
func (l *stdLogger) Warn(args ...interface{})                  { l.Println(args...) }
func (l *stdLogger) Errorf(format string, args ...interface{}) { l.Printf(format, args...) }
func (l *stdLogger) Warnf(format string, args ...interface{})  { l.Printf(format, args...) }

func (l *stdLogger) Info(args ...interface{}) {
	if l.verbose {
		l.Println(args...)
	}
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	if l.verbose {
		l.Printf(format, args...)
	}
}

func (l *stdLogger) Debug(args ...interface{}) {
	if l.verbose {
		l.Println(args...)
	}
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	if l.verbose {
		l.Printf(format, args...)
	}
}

var _ logging.L = (*stdLogger)(nil)

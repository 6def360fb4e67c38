package loggingx

import (
	"os"

	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap is a logging.Logger that writes to a zap logger.
type Zap struct {
	Target *zap.SugaredLogger
}

var _ logging.Logger = (*Zap)(nil)

// NewZap returns a logger that writes human-readable messages to stderr.
//
// Debug messages are only written if debug is true.
func NewZap(debug bool) *Zap {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.Lock(os.Stderr),
		level,
	)

	return &Zap{
		Target: zap.New(core).Sugar(),
	}
}

// Log writes an application log message formatted according to a format
// specifier.
func (l *Zap) Log(f string, v ...interface{}) {
	l.Target.Infof(f, v...)
}

// LogString writes a pre-formatted application log message.
func (l *Zap) LogString(s string) {
	l.Target.Info(s)
}

// Debug writes a debug log message formatted according to a format specifier.
func (l *Zap) Debug(f string, v ...interface{}) {
	l.Target.Debugf(f, v...)
}

// DebugString writes a pre-formatted debug log message.
func (l *Zap) DebugString(s string) {
	l.Target.Debug(s)
}

// IsDebug returns true if debug messages are written.
func (l *Zap) IsDebug() bool {
	return l.Target.Desugar().Core().Enabled(zapcore.DebugLevel)
}

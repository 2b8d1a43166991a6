package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger for the whole engine. Call Init once before use.
var Log *zap.Logger = zap.NewNop()

// Init configures the global logger. Safe to call more than once; the last
// call wins.
func Init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	log, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than failing engine startup.
		Log = zap.NewNop()
		return
	}
	Log = log
}

// Sync flushes any buffered log entries, typically deferred from main.
func Sync() {
	_ = Log.Sync()
}

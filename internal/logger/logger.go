package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is built.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process logger. It must be called once at startup;
// until then every call is a no-op.
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("logger: invalid level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch opts.Format {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("logger: invalid format %q", opts.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	Use(zap.New(core))

	Info("logger initialized", map[string]any{"level": level.String()})
	return nil
}

// Use swaps the underlying zap logger. Tests install an observer core here.
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}

func Debug(msg string, fields map[string]any) {
	current().Debug(msg, toZap(fields)...)
}

func Info(msg string, fields map[string]any) {
	current().Info(msg, toZap(fields)...)
}

func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toZap(fields)...)
}

func Error(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	l := current()
	l.Error(msg, toZap(fields)...)
	_ = l.Sync()
	os.Exit(1)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

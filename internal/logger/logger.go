// Package logger is the structured JSON logger of the feeds service. Every
// component attaches a component field; refresh and export lines also
// carry the source and the tick they belong to.
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is what pipeline components log through. Implementations must be
// safe for concurrent use by the tick workers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Field is a key-value pair attached to a log entry.
type Field = zap.Field

type zlog struct {
	z *zap.Logger
}

// New builds the service logger. Output is always JSON; error lines carry
// a stack trace.
func New(cfg Config) (Logger, error) {
	cfg.SetDefaults()

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zapCfg.OutputPaths = cfg.OutputPaths
	if cfg.Development {
		// every failed source of a tick is visible
		zapCfg.Sampling = nil
	}

	z, err := zapCfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("build feeds logger: %w", err)
	}
	return &zlog{z: z}, nil
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func (l *zlog) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zlog) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zlog) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zlog) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zlog) With(fields ...Field) Logger       { return &zlog{z: l.z.With(fields...)} }
func (l *zlog) Sync() error                       { return l.z.Sync() }

func String(key, val string) Field                 { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Any(key string, val any) Field                { return zap.Any(key, val) }

// Error attaches err under "error".
func Error(err error) Field { return zap.Error(err) }

// Component names the pipeline stage emitting the line: refresh,
// scheduler, assembler, export, api.
func Component(name string) Field { return zap.String("component", name) }

// Source names the feed source a line is about.
func Source(name string) Field { return zap.String("source", name) }

// TickID ties a line to one refresh tick.
func TickID(id string) Field { return zap.String("tick_id", id) }

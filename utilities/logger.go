package utilities

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"quizcoach-backend/internal/config"
)

// Logger is a thin key/value wrapper around zap's SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var std atomic.Pointer[Logger]

func init() {
	std.Store(NopLogger())
}

// NopLogger discards everything. Tests and library callers without a
// configured logger get this one.
func NopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// NewLogger builds a console logger and, when cfg.Dir is set, a rotating JSON
// file sink next to it.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zap.DebugLevel)
	encCfg := zap.NewDevelopmentEncoderConfig()
	if IsProd(cfg.Mode) {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if IsProd(cfg.Mode) {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "quizcoach.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotator), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: z.Sugar()}, nil
}

// SetupLogging builds a logger from cfg and installs it as the package logger.
func SetupLogging(cfg config.LoggingConfig) (*Logger, error) {
	l, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

func SetLogger(l *Logger) {
	if l == nil {
		l = NopLogger()
	}
	std.Store(l)
}

// L returns the package logger.
func L() *Logger { return std.Load() }

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, redact(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redact(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redact(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redact(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(redact(keysAndValues)...)}
}

// StdLog adapts the logger for libraries that want a *log.Logger.
func (l *Logger) StdLog() *log.Logger {
	return zap.NewStdLog(l.sugar.Desugar())
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func Debug(msg string, keysAndValues ...interface{}) { L().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...interface{})  { L().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...interface{})  { L().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...interface{}) { L().Error(msg, keysAndValues...) }

// IsProd reports whether mode selects production logging.
func IsProd(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		return true
	}
	return false
}

var redactedKeys = []string{"password", "secret", "token", "authorization", "client_key"}

func redact(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		for _, k := range redactedKeys {
			if strings.Contains(lower, k) {
				out[i+1] = "[REDACTED]"
				break
			}
		}
	}
	return out
}

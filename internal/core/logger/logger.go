package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

type Field = zap.Field

func StringField(key, value string) Field {
	return zap.String(key, value)
}

func ErrorField(key string, err error) Field {
	return zap.NamedError(key, err)
}

func AnyField(key string, value interface{}) Field {
	return zap.Any(key, value)
}

func Int64Field(key string, value int64) Field {
	return zap.Int64(key, value)
}

func IntField(key string, value int) Field {
	return zap.Int(key, value)
}

func TimeField(key string, value time.Time) Field {
	return zap.Time(key, value)
}

// DecimalField renders money with two fractional digits.
func DecimalField(key string, value decimal.Decimal) Field {
	return zap.String(key, value.StringFixed(2))
}

// NewLogger writes info and below to info.log and warn and above to error.log
// inside dir. An empty dir sends the same split to stdout and stderr.
func NewLogger(dir string) (*zap.Logger, func()) {
	var infoSink, errorSink zapcore.WriteSyncer
	closers := []func() error{}

	if dir == "" {
		infoSink = zapcore.Lock(os.Stdout)
		errorSink = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic("failed to create log directory: " + err.Error())
		}

		infoFile, err := os.OpenFile(filepath.Join(dir, "info.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			panic("failed to open info log file: " + err.Error())
		}

		errorFile, err := os.OpenFile(filepath.Join(dir, "error.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			infoFile.Close()
			panic("failed to open error log file: " + err.Error())
		}

		infoSink = zapcore.AddSync(infoFile)
		errorSink = zapcore.AddSync(errorFile)
		closers = append(closers, infoFile.Close, errorFile.Close)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	infoCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		infoSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl <= zapcore.InfoLevel
		}),
	)

	errorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		errorSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.WarnLevel
		}),
	)

	logger := zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller())

	cleanup := func() {
		_ = logger.Sync()
		for _, c := range closers {
			_ = c()
		}
	}

	return logger, cleanup
}

// NewNop is used by tests that do not care about log output.
func NewNop() Logger {
	return zap.NewNop()
}

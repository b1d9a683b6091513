package logger

import (
	"context"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ワーカーとリクエスト処理から並行に参照されるため atomic に差し替える
var log atomic.Pointer[zap.Logger]

func init() {
	log.Store(NewLogger("development"))
}

// NewLogger は環境に応じたロガーを作成する
// LOG_LEVEL が有効なレベル名なら出力レベルを上書きする
func NewLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewServiceLogger はサービス名とバージョンを付与したロガーを作成する
func NewServiceLogger(env, service, version string) *zap.Logger {
	return NewLogger(env).With(
		zap.String("service", service),
		zap.String("version", version),
	)
}

func Get() *zap.Logger {
	return log.Load()
}

func Set(l *zap.Logger) {
	log.Store(l)
}

// Ctx は ctx にスパンがあれば trace_id / span_id を付与したロガーを返す
func Ctx(ctx context.Context) *zap.Logger {
	l := Get()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

func Sync() error {
	return Get().Sync()
}

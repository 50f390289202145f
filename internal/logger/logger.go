package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It discards everything until Initialize
// runs, so packages can log from tests without setup.
var Log = zap.NewNop()

// Initialize installs a console logger on stdout and, when logFile is not
// empty, a rotated JSON log alongside it. Unknown levels fall back to info.
func Initialize(logLevel string, logFile string) error {
	level := ParseLevel(logLevel)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), level),
	}
	if logFile != "" {
		cores = append(cores, fileCore(logFile, level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Log.Debug("Logger initialized", zap.Stringer("level", level), zap.String("file", logFile))
	return nil
}

func fileCore(path string, level zapcore.Level) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), level)
}

// ParseLevel maps a LOG_LEVEL value to a zap level.
func ParseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || level > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return level
}

// Close flushes buffered entries.
func Close() error {
	return Log.Sync()
}

func WithRequestID(requestID string) zap.Field { return zap.String("request_id", requestID) }

func WithUserID(userID string) zap.Field { return zap.String("user_id", userID) }

func WithVideoID(videoID string) zap.Field { return zap.String("video_id", videoID) }

// WithTarget tags a log line with a polymorphic like/comment target.
func WithTarget(kind, id string) zap.Field {
	return zap.Dict("target", zap.String("kind", kind), zap.String("id", id))
}

func WithIP(ip string) zap.Field { return zap.String("ip", ip) }

func WithStatus(status int) zap.Field { return zap.Int("status", status) }

func WithDuration(d time.Duration) zap.Field { return zap.Duration("duration", d) }

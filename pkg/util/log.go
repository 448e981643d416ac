package util

import (
	"github.com/petermattis/goid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var glog *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	glog = logger
}

// Every log line carries the calling goroutine id. The sort buffer has a
// single-owner threading model, so the gid is the interesting diagnostic
// when something goes wrong.
func withGid(fields []zap.Field) []zap.Field {
	return append(fields, zap.Int64("gid", goid.Get()))
}

func Debug(msg string, fields ...zap.Field) {
	glog.Debug(msg, withGid(fields)...)
}

func Info(msg string, fields ...zap.Field) {
	glog.Info(msg, withGid(fields)...)
}

func Warn(msg string, fields ...zap.Field) {
	glog.Warn(msg, withGid(fields)...)
}

func Error(msg string, fields ...zap.Field) {
	glog.Error(msg, withGid(fields)...)
}

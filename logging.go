package main

import (
	"go.uber.org/zap"
)

// requestLogger wraps the sugared zap logger with a fixed request_id and
// provider pair so every call site logs context without repeating it.
type requestLogger struct {
	sugar    *zap.SugaredLogger
	provider string
}

func newRequestLogger(base *zap.SugaredLogger, requestID, provider string) *requestLogger {
	return &requestLogger{
		sugar:    base.With("request_id", requestID, "provider", provider),
		provider: provider,
	}
}

func (l *requestLogger) Infow(msg string, keysAndValues ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *requestLogger) Warnw(msg string, keysAndValues ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *requestLogger) Errorw(msg string, keysAndValues ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorw(msg, keysAndValues...)
}

// globalLogger is a provider-less logger for concerns that happen outside
// any single request's lifecycle (startup, config load, and adapter-level
// warnings that don't carry a request_id at the call site). It is set once
// in main() and left nil in tests that never call newGlobalLogger.
var globalLogger *requestLogger

func newGlobalLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

func initGlobalLogger() {
	globalLogger = &requestLogger{sugar: newGlobalLogger(), provider: ""}
}

// globalSugar exposes the base sugared logger so per-request loggers can
// attach their own request_id/provider fields via newRequestLogger. Falls
// back to a no-op logger when initGlobalLogger was never called (tests).
func globalSugar() *zap.SugaredLogger {
	if globalLogger == nil || globalLogger.sugar == nil {
		return zap.NewNop().Sugar()
	}
	return globalLogger.sugar
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestLoggerNilSafe(t *testing.T) {
	var l *requestLogger
	assert.NotPanics(t, func() {
		l.Infow("noop")
		l.Warnw("noop")
		l.Errorw("noop")
	})
}

func TestNewRequestLoggerCarriesFields(t *testing.T) {
	base := newGlobalLogger()
	l := newRequestLogger(base, "req-1", "openai")
	assert.Equal(t, "openai", l.provider)
	assert.NotNil(t, l.sugar)
}

func TestGlobalSugarFallsBackWhenUninitialized(t *testing.T) {
	prev := globalLogger
	globalLogger = nil
	defer func() { globalLogger = prev }()

	assert.NotNil(t, globalSugar())
}

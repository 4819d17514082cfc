package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestKeyValuesBecomeFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(zap.NewNop()) })

	Info("fetch done", "projects", 3, 42, "ignored", "dangling")
	Error("fetch failed", errors.New("boom"), "url", "https://api.example.com/...(redacted)")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, "fetch done", entries[0].Message)
	assert.Equal(t, map[string]any{"projects": int64(3)}, entries[0].ContextMap())

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	ctx := entries[1].ContextMap()
	assert.Equal(t, "boom", ctx["err"])
	assert.Equal(t, "https://api.example.com/...(redacted)", ctx["url"])
}

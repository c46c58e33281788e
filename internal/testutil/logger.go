package testutil

import (
	"bytes"
	"log/slog"
)

// NewBufferLogger returns an info-level text logger and the buffer it writes to.
func NewBufferLogger() (*slog.Logger, *bytes.Buffer) {
	return NewLevelBufferLogger(slog.LevelInfo)
}

// NewLevelBufferLogger is NewBufferLogger with an explicit minimum level, for
// asserting on debug output such as extractor state transitions.
func NewLevelBufferLogger(level slog.Leveler) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

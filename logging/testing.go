package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testWriter struct {
	tb testing.TB
}

// newTestWriter returns a write syncer that logs every encoded entry through `tb.Log`, which
// associates the line with the running test even when tests run in parallel.
func newTestWriter(tb testing.TB) zapcore.WriteSyncer {
	return &testWriter{tb}
}

func (tw *testWriter) Write(p []byte) (int, error) {
	tw.tb.Helper()
	tw.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// Sync is a no-op.
func (tw *testWriter) Sync() error {
	return nil
}

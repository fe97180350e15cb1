package testing

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"hookcheck/pkg/logging"

	"github.com/stretchr/testify/assert"
)

func TestConsoleLogger(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		debug     bool
		wantOut   string
		wantError string
	}{
		{name: "quiet", wantOut: "", wantError: "boom\n"},
		{name: "verbose", verbose: true, wantOut: "info\n", wantError: "boom\n"},
		{name: "debug", debug: true, wantOut: "debug\ninfo\n", wantError: "boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			logger := NewWriterLogger(&out, &errOut, tt.verbose, tt.debug)

			logger.Debug("debug\n")
			logger.Info("info\n")
			logger.Error("%s\n", "boom")

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantError, errOut.String())
			assert.Equal(t, tt.debug, logger.IsDebugEnabled())
			assert.Equal(t, tt.verbose, logger.IsVerboseEnabled())
		})
	}
}

// lockedBuffer guards a buffer the global logger may write to from
// receiver goroutines of earlier tests.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSilentLoggerWritesStructuredLog(t *testing.T) {
	buf := &lockedBuffer{}
	logging.InitForCLI(logging.LevelDebug, buf)
	t.Cleanup(func() { logging.InitForCLI(logging.LevelWarn, io.Discard) })

	NewSilentLogger(false, false).Info("hidden\n")
	NewSilentLogger(false, false).Error("⚠️  Cleanup of scenario %s failed\n", "login")
	NewSilentLogger(false, true).Debug("🔄 Executing scenario: %s\n", "login")

	got := buf.String()
	assert.NotContains(t, got, "hidden")
	assert.Contains(t, got, "Cleanup of scenario login failed")
	assert.Contains(t, got, "Executing scenario: login")
	assert.Contains(t, got, "subsystem=Harness")
}

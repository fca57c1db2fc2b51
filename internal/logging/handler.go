package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single engine line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of engine lines kept for the
	// log panel and the exit summary.
	MaxBufferedLines = 200
)

// OutputBuffer collects line-oriented output from the engine process.
// It keeps a ring of recent lines for display and logs each line at a
// level inferred from its content.
type OutputBuffer struct {
	logger  *slog.Logger
	verbose bool

	buffer []string
	bufIdx int
	count  int
	mu     sync.Mutex
}

// NewOutputBuffer creates a new output buffer for engine process lines.
func NewOutputBuffer(logger *slog.Logger, verbose bool) *OutputBuffer {
	return &OutputBuffer{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleLine records a single line of engine output.
func (b *OutputBuffer) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	b.mu.Lock()
	b.buffer[b.bufIdx] = line
	b.bufIdx = (b.bufIdx + 1) % MaxBufferedLines
	if b.count < MaxBufferedLines {
		b.count++
	}
	b.mu.Unlock()

	b.logLine(line)
}

// logLine logs the line at a level based on content.
func (b *OutputBuffer) logLine(line string) {
	level := classifyLine(line)

	// In non-verbose mode only surface warnings and errors
	if !b.verbose && level == slog.LevelDebug {
		return
	}

	b.logger.Log(context.Background(), level, "engine_output", "line", line)
}

// classifyLine determines the log level for an engine line based on content.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "[stderr]") ||
		strings.Contains(lower, "error") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "cannot open") {
		return slog.LevelWarn
	}

	// Audio backend trouble that usually precedes dropouts
	if strings.Contains(lower, "xrun") ||
		strings.Contains(lower, "underrun") ||
		strings.Contains(lower, "overrun") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (b *OutputBuffer) RecentLines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, b.buffer[idx])
	}
	return lines
}

// Len returns the number of lines currently buffered.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

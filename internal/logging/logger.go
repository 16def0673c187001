package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Setup installs the global slog logger: JSON to stdout, plus a text copy in
// logFile when set, plus any extra handlers. The returned closer releases the
// log file.
func Setup(debug bool, logFile string, extra ...slog.Handler) (io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewJSONHandler(os.Stdout, opts)}
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, opts))
		closer = f
	}
	handlers = append(handlers, extra...)

	slog.SetDefault(slog.New(NewMultiHandler(handlers...)))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

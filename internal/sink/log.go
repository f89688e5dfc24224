package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GoPolymarket/apilogs/internal/pkg/logger"
)

// LogSink writes one structured JSON line per emission.
type LogSink struct {
	logger *slog.Logger
	closer io.Closer
}

// NewLogSink opens stdout, stderr or an append-only file.
func NewLogSink(output string) (*LogSink, error) {
	switch output {
	case "", "stdout":
		return NewWriterSink(os.Stdout), nil
	case "stderr":
		return NewWriterSink(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log sink %s: %w", output, err)
	}
	s := NewWriterSink(f)
	s.closer = f
	return s, nil
}

func NewWriterSink(w io.Writer) *LogSink {
	return &LogSink{logger: logger.New(w, "info")}
}

func (s *LogSink) Emit(ctx context.Context, channel, message string, fields map[string]any) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, message,
		slog.String("channel", channel),
		slog.Any("context", fields),
	)
	return nil
}

func (s *LogSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

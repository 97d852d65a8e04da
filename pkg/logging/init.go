package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Initialize installs the default logger. Log output goes to stderr;
// stdout is reserved for the run report.
func Initialize(format string, levelName string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("could not parse log level: %v", err)
	}

	handler, err := newHandler(os.Stderr, format, level)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))
	slog.Debug("logging initialized", "level", level, "format", format)
	return nil
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}

	switch format {
	case JSON:
		return slog.NewJSONHandler(w, &opts), nil
	case Text:
		return slog.NewTextHandler(w, &opts), nil
	case Tint:
		return tint.NewHandler(w, &tint.Options{
			AddSource: opts.AddSource,
			Level:     opts.Level,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

package logging

import (
	"io"
	"log/slog"
)

// Setup installs the default slog logger. Without debug, logs are
// discarded so they never interleave with the interactive output.
// With debug, records at debug level go to a rotating file at path.
// The returned closer is nil when nothing was opened.
func Setup(debug bool, path string) (io.Closer, error) {
	if !debug {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil, nil
	}

	file, err := NewRotatingFile(path)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return file, nil
}

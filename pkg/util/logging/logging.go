package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevelMapping = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level resolves the LOG_LEVEL environment variable, then fallback, then info.
func Level(fallback string) slog.Level {
	for _, name := range []string{os.Getenv("LOG_LEVEL"), fallback} {
		if level, ok := logLevelMapping[strings.ToLower(name)]; ok {
			return level
		}
	}
	return slog.LevelInfo
}

// New returns a JSON logger tagged with the node id.
func New(w io.Writer, nodeId string, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})).With("node_id", nodeId)
}

func InitDefault(nodeId string, level string) {
	slog.SetDefault(New(os.Stdout, nodeId, Level(level)))
}

package internal

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu   sync.RWMutex
	logBase = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// ConfigureLogging sets the level and output format shared by every logger
// returned from NewLogger afterwards.
func ConfigureLogging(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logMu.Lock()
	logBase = zerolog.New(out).Level(level).With().Timestamp().Logger()
	logMu.Unlock()
	return nil
}

func NewLogger(component string) zerolog.Logger {
	name := "ghbridge"
	if component != "" {
		name = name + "/" + component
	}
	logMu.RLock()
	defer logMu.RUnlock()
	return logBase.With().Str("component", name).Logger()
}

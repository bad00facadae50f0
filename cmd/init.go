package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/tarungka/wireflow/internal/config"
	"github.com/tarungka/wireflow/internal/logger"
)

// initLogging applies the log settings and, when a log file is set, writes
// logs to both the file and stderr. The returned closer releases the file.
func initLogging(s config.Settings) (io.Closer, error) {
	logger.SetDevelopment(s.Development)
	if err := logger.SetLevel(s.LogLevel); err != nil {
		return nil, err
	}
	if s.LogFile == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(zerolog.MultiLevelWriter(os.Stderr, f))
	return f, nil
}

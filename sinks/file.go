package sinks

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// FileSink appends one "epoch<TAB>item" line per captured item.
type FileSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	// File details
	filePath string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

func (f *FileSink) Init(args SinkConfig) error {
	f.pipelineKey = args.Key
	f.pipelineName = args.Name
	f.pipelineConnectionType = args.ConnectionType

	if err := args.require("file_path"); err != nil {
		log.Error().Msg("Missing file_path in config")
		return err
	}

	f.filePath = args.Config["file_path"]
	return nil
}

func (f *FileSink) Connect(ctx context.Context) error {
	log.Trace().Str("file_path", f.filePath).Msg("Preparing to open file for writing")

	// Ensure parent directory exists
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Err(err).Str("directory", dir).Msg("Failed to create parent directories")
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Warn if the file already exists
	if _, err := os.Stat(f.filePath); err == nil {
		log.Warn().Str("file_path", f.filePath).Msg("File already exists; appending to it")
	}

	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Err(err).Str("file_path", f.filePath).Msg("Failed to open file")
		return fmt.Errorf("failed to open file: %w", err)
	}

	f.file = file
	f.writer = bufio.NewWriter(file)
	return nil
}

func (f *FileSink) Capture(epoch stream.Epoch, v value.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writer == nil {
		return fmt.Errorf("file sink %s is not connected", f.filePath)
	}

	line := strconv.AppendUint(nil, uint64(epoch), 10)
	line = append(line, '\t')
	line = append(line, text(v)...)
	line = append(line, '\n')
	if _, err := f.writer.Write(line); err != nil {
		log.Err(err).Msg("Failed to write to file")
		return err
	}
	return nil
}

func (f *FileSink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	log.Info().Str("file_path", f.filePath).Msg("Closing file sink")
	if err := f.writer.Flush(); err != nil {
		f.file.Close()
		return err
	}
	if err := f.file.Close(); err != nil {
		log.Err(err).Msg("Failed to close file")
		return err
	}
	f.file, f.writer = nil, nil
	return nil
}

func (f *FileSink) Name() string { return f.pipelineName }

func (f *FileSink) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", f.pipelineKey, f.pipelineName, f.pipelineConnectionType)
}

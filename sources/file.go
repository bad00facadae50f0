package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// FileSource reads a text file line by line. Worker i of n takes the lines
// whose number is i mod n; line l belongs to epoch l / epoch_size.
type FileSource struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	filePath  string
	epochSize uint64
	rateLimit float64
}

func (f *FileSource) Init(args SourceConfig) error {
	f.pipelineKey = args.Key
	f.pipelineName = args.Name
	f.pipelineConnectionType = args.ConnectionType

	if err := args.require("file_path"); err != nil {
		log.Error().Err(err).Msg("missing file_path in config")
		return err
	}
	f.filePath = args.Config["file_path"]

	var err error
	if f.epochSize, err = args.uint64("epoch_size", 1); err != nil {
		return err
	}
	if f.epochSize == 0 {
		return fmt.Errorf("epoch_size must be positive")
	}
	if f.rateLimit, err = args.float("rate_limit", 0); err != nil {
		return err
	}
	return nil
}

func (f *FileSource) Input(ctx context.Context) (stream.Input, error) {
	if _, err := os.Stat(f.filePath); err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return stream.Partitioned{Build: func(index, total int) (stream.Iterator, error) {
		file, err := os.Open(f.filePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file_path", f.filePath).Int("worker", index).Msg("reading file partition")
		return &lineIterator{
			ctx:       ctx,
			file:      file,
			scanner:   bufio.NewScanner(file),
			index:     uint64(index),
			total:     uint64(total),
			epochSize: f.epochSize,
			limiter:   newLimiter(f.rateLimit),
		}, nil
	}}, nil
}

func (f *FileSource) Name() string { return f.pipelineName }

func (f *FileSource) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", f.pipelineKey, f.pipelineName, f.pipelineConnectionType)
}

type lineIterator struct {
	ctx       context.Context
	file      *os.File
	scanner   *bufio.Scanner
	line      uint64
	index     uint64
	total     uint64
	epochSize uint64
	limiter   *rate.Limiter
}

func (it *lineIterator) Next() (stream.Record, bool, error) {
	for it.scanner.Scan() {
		n := it.line
		it.line++
		if n%it.total != it.index {
			continue
		}
		if err := wait(it.ctx, it.limiter); err != nil {
			return stream.Record{}, false, err
		}
		return stream.At(stream.Epoch(n/it.epochSize), value.String(it.scanner.Text())), true, nil
	}
	return stream.Record{}, false, it.scanner.Err()
}

func (it *lineIterator) Close() error { return it.file.Close() }

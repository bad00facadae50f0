package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tarungka/wireflow/engine"
	"github.com/tarungka/wireflow/internal/config"
	"github.com/tarungka/wireflow/internal/logger"
	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/server"
	"github.com/tarungka/wireflow/sinks"
	"github.com/tarungka/wireflow/sources"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

var buildString = "unknown"

func main() {
	settings, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if settings.Version {
		fmt.Println(buildString)
		os.Exit(0)
	}

	closer, err := initLogging(settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings); err != nil {
		log.Error().Err(err).Msg("run failed")
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, settings config.Settings) error {
	log := logger.GetLogger("wireflow")
	log.Info().Str("build", buildString).Msg("Starting the application")

	if settings.Source.ConnectionType == "" {
		return fmt.Errorf("no source configured; pass --input or a source in --config")
	}

	cfg := settings.Engine
	cfg.RunID = engine.NewRunID()
	cfg.Metrics = metrics.NewRegistry()

	var wg sync.WaitGroup
	defer wg.Wait()
	if settings.StatusAddr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		srv := server.New(settings.StatusAddr, buildString, cfg.Metrics)
		srv.SetRunID(cfg.RunID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(srvCtx); err != nil {
				log.Warn().Err(err).Msg("status server failed")
			}
		}()
	}

	input, err := sources.NewInput(ctx, settings.Source)
	if err != nil {
		return fmt.Errorf("source %s: %w", settings.Source.ConnectionType, err)
	}

	capture, done, err := openCapture(ctx, settings.Sink)
	if err != nil {
		return fmt.Errorf("sink %s: %w", settings.Sink.ConnectionType, err)
	}

	flow, err := wordCount(input, capture)
	if err != nil {
		done()
		return err
	}

	runErr := engine.BuildAndRun(ctx, cfg, flow)
	if err := done(); err != nil && runErr == nil {
		runErr = err
	}
	totals := cfg.Metrics.Totals()
	log.Info().
		Uint64("ingested", totals.Ingested).
		Uint64("exchanged", totals.Exchanged).
		Uint64("captured", totals.Captured).
		Msg("run finished")
	return runErr
}

// openCapture returns the capture function for the configured sink, or one
// writing to stdout when no sink is configured.
func openCapture(ctx context.Context, cfg sinks.SinkConfig) (stream.CaptureFunc, func() error, error) {
	if cfg.ConnectionType == "" {
		out := newLineCapture(os.Stdout)
		return out.capture, out.flush, nil
	}
	sink, err := sinks.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("sink", sink.Info()).Msg("Connected sink")
	return sink.Capture, sink.Disconnect, nil
}

// lineCapture writes "epoch<TAB>value" lines. An interrupted run can return
// while worker 0 is still capturing, so writes and flushes share a lock.
type lineCapture struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newLineCapture(w io.Writer) *lineCapture {
	return &lineCapture{w: bufio.NewWriter(w)}
}

func (l *lineCapture) capture(epoch stream.Epoch, v value.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%d\t%s\n", epoch, v)
	return err
}

func (l *lineCapture) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

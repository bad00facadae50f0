// Package engine compiles dataflows into per-worker operator chains and runs
// them across worker threads and processes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarungka/wireflow/internal/communication"
	"github.com/tarungka/wireflow/internal/logger"
	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/utils"
	"github.com/tarungka/wireflow/stream"
)

// BasePort is the port of process 0 when no addresses are configured.
const BasePort = 2101

var (
	// ErrInvalidConfig is returned before any worker starts when the
	// configuration cannot describe a cluster.
	ErrInvalidConfig = errors.New("invalid cluster configuration")

	// ErrInterrupted is returned when the run is canceled from outside.
	ErrInterrupted = errors.New("run interrupted")

	// ErrWorkerDied is returned when at least one worker failed. Details are
	// logged when the failure happens.
	ErrWorkerDied = errors.New("worker thread died; see logs for details")
)

// Config describes the workers of one run.
type Config struct {
	// Threads is the number of workers in this process.
	Threads int `koanf:"threads"`
	// Process is the index of this process; only meaningful when Processes > 0.
	Process int `koanf:"process"`
	// Processes is the number of cooperating processes. Zero runs everything
	// in this process over shared memory.
	Processes int `koanf:"processes"`
	// Addresses lists one host:port per process. Defaults to
	// localhost:2101, localhost:2102, ...
	Addresses []string `koanf:"addresses"`

	PollInterval time.Duration `koanf:"poll_interval"`
	DialAttempts int           `koanf:"dial_attempts"`
	DialInterval time.Duration `koanf:"dial_interval"`

	// RunID tags the logs of the run. A time ordered id is generated when
	// empty.
	RunID string `koanf:"run_id"`

	// Metrics receives the per-worker counters. Optional.
	Metrics *metrics.Registry `koanf:"-"`
}

// DefaultConfig returns a single-threaded, single-process configuration.
func DefaultConfig() Config {
	return Config{
		Threads:      1,
		PollInterval: time.Millisecond,
		DialAttempts: 100,
		DialInterval: 100 * time.Millisecond,
	}
}

// DefaultAddresses returns the addresses used when none are configured.
func DefaultAddresses(processes int) []string {
	addrs := make([]string, processes)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("localhost:%d", BasePort+i)
	}
	return addrs
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threads == 0 {
		c.Threads = d.Threads
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = d.DialAttempts
	}
	if c.DialInterval == 0 {
		c.DialInterval = d.DialInterval
	}
	if c.Processes > 0 && len(c.Addresses) == 0 {
		c.Addresses = DefaultAddresses(c.Processes)
	}
	return c
}

// Validate reports whether c describes a runnable cluster. Zero fields are
// filled with defaults first.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.Threads < 1:
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidConfig, c.Threads)
	case c.Processes < 0:
		return fmt.Errorf("%w: processes must not be negative, got %d", ErrInvalidConfig, c.Processes)
	case c.Processes == 0 && c.Process != 0:
		return fmt.Errorf("%w: process %d given without processes", ErrInvalidConfig, c.Process)
	case c.Processes > 0 && (c.Process < 0 || c.Process >= c.Processes):
		return fmt.Errorf("%w: process %d out of range [0, %d)", ErrInvalidConfig, c.Process, c.Processes)
	case c.Processes > 0 && len(c.Addresses) != c.Processes:
		return fmt.Errorf("%w: %d address(es) for %d process(es)", ErrInvalidConfig, len(c.Addresses), c.Processes)
	case c.PollInterval < 0 || c.DialInterval < 0 || c.DialAttempts < 0:
		return fmt.Errorf("%w: negative interval or attempts", ErrInvalidConfig)
	}
	for _, addr := range c.Addresses {
		if _, _, err := utils.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: address %q: %v", ErrInvalidConfig, addr, err)
		}
	}
	return nil
}

// Workers returns the total number of workers across all processes.
func (c Config) Workers() int {
	if c.Processes == 0 {
		return c.Threads
	}
	return c.Threads * c.Processes
}

// BuildAndRun runs every dataflow on every worker of this process until all
// inputs are exhausted and all results have drained, a worker fails, or ctx
// is canceled. Each call supervises its own workers, so calls may overlap.
func BuildAndRun(ctx context.Context, cfg Config, flows ...*stream.Dataflow) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	for i, f := range flows {
		if f == nil {
			return fmt.Errorf("%w: flow %d is nil", ErrInvalidConfig, i)
		}
	}

	runID := cfg.RunID
	if runID == "" {
		runID = NewRunID()
	}
	log := logger.GetLogger("executor").With().Str("run_id", runID).Logger()
	sup := NewSupervisor(log)

	fabric, err := buildFabric(ctx, cfg, sup)
	if err != nil {
		log.Error().Err(err).Msg("failed to build communication fabric")
		return err
	}
	sup.OnAbort(fabric.Abort)

	if cfg.Processes > 0 && cfg.Process != 0 && capturing(flows) {
		log.Info().Int("process", cfg.Process).Msg("captured items are delivered to worker 0 in process 0")
	}
	log.Info().
		Int("threads", cfg.Threads).
		Int("process", cfg.Process).
		Int("processes", cfg.Processes).
		Int("flows", len(flows)).
		Msg("starting workers")

	seed := uint64(time.Now().UnixNano())
	var wg sync.WaitGroup
	for t := 0; t < cfg.Threads; t++ {
		index := cfg.Process*cfg.Threads + t
		w := &worker{
			index:   index,
			peers:   cfg.Workers(),
			seed:    seed + uint64(index)<<16,
			flows:   flows,
			fabric:  fabric,
			sup:     sup,
			metrics: cfg.Metrics.Worker(index),
			logger:  log.With().Int("worker", index).Logger(),
		}
		sup.Go(&wg, index, w.run)
	}

	if err := newCoordinator(cfg.PollInterval, sup, cfg.Threads).wait(ctx); err != nil {
		log.Warn().Err(err).Msg("run interrupted")
		sup.Interrupt(ErrInterrupted)
		go func() {
			wg.Wait()
			fabric.Close()
		}()
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	wg.Wait()
	if err := fabric.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close communication fabric")
	}

	if n := sup.Failures(); n > 0 {
		return fmt.Errorf("%w (%d failure(s), first: %v)", ErrWorkerDied, n, sup.Err())
	}
	log.Info().Msg("run complete")
	return nil
}

// NewRunID returns a fresh time ordered run id.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func buildFabric(ctx context.Context, cfg Config, sup *Supervisor) (communication.Fabric, error) {
	if cfg.Processes == 0 {
		return communication.NewLocal(cfg.Threads), nil
	}
	return communication.NewNetwork(ctx, communication.NetworkConfig{
		Addresses:    cfg.Addresses,
		Process:      cfg.Process,
		Threads:      cfg.Threads,
		DialAttempts: cfg.DialAttempts,
		DialInterval: cfg.DialInterval,
		OnPeerFailure: func(err error) {
			sup.ReportFailure(-1, err)
		},
	})
}

func capturing(flows []*stream.Dataflow) bool {
	for _, f := range flows {
		for _, s := range f.Steps() {
			if _, ok := s.(stream.Capture); ok {
				return true
			}
		}
	}
	return false
}

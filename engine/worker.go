package engine

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/rs/zerolog"

	"github.com/tarungka/wireflow/internal/communication"
	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
)

// worker drives every dataflow of a run on one OS thread.
type worker struct {
	index int
	peers int
	seed  uint64
	flows []*stream.Dataflow

	fabric  communication.Fabric
	sup     *Supervisor
	metrics *metrics.Worker
	logger  zerolog.Logger
}

type pumped struct {
	flow int
	pump *Pump
}

func (w *worker) run() (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.metrics.MarkStarted()
	defer w.metrics.MarkFinished()
	defer func() {
		if err != nil {
			w.metrics.IncrementFailures()
		}
	}()

	installed := make([]*compiled, 0, len(w.flows))
	defer func() {
		for i, c := range installed {
			if cerr := c.teardown(); cerr != nil {
				w.logger.Warn().Err(cerr).Int("flow", i).Msg("failed to close input")
			}
		}
	}()

	var pumps []pumped
	var probes []*progress.Probe
	for i, flow := range w.flows {
		c, err := compile(flow, scope{
			flow:    i,
			worker:  w.index,
			peers:   w.peers,
			seed:    w.seed + uint64(i),
			fabric:  w.fabric,
			metrics: w.metrics,
			logger:  w.logger,
		})
		if err != nil {
			return fmt.Errorf("flow %d: %w", i, err)
		}
		installed = append(installed, c)
		if c.pump != nil {
			pumps = append(pumps, pumped{flow: i, pump: c.pump})
		}
		probes = append(probes, c.probe)
	}
	for i, c := range installed {
		if err := c.start(); err != nil {
			return fmt.Errorf("flow %d: %w", i, err)
		}
	}
	w.logger.Debug().Int("flows", len(installed)).Int("pumps", len(pumps)).Msg("worker started")

	mailbox := w.fabric.Mailbox(w.index)
	var inbound []communication.Message
	for len(pumps) > 0 || len(probes) > 0 {
		if w.sup.Interrupted() {
			w.logger.Info().Msg("worker interrupted")
			return nil
		}

		active := pumps[:0]
		for _, p := range pumps {
			if err := p.pump.Pump(); err != nil {
				return fmt.Errorf("flow %d: %w", p.flow, err)
			}
			if p.pump.InputRemains() {
				active = append(active, p)
			}
		}
		pumps = active

		probes = slices.DeleteFunc(probes, (*progress.Probe).Done)

		inbound = mailbox.Drain(inbound[:0])
		for _, msg := range inbound {
			if msg.Flow < 0 || msg.Flow >= len(installed) {
				return fmt.Errorf("message for unknown flow %d", msg.Flow)
			}
			if err := installed[msg.Flow].deliver(msg); err != nil {
				return fmt.Errorf("flow %d: %w", msg.Flow, err)
			}
		}

		if len(pumps) == 0 && len(inbound) == 0 && mailbox.Len() == 0 {
			runtime.Gosched()
		}
	}

	w.logger.Debug().Msg("worker finished")
	return nil
}

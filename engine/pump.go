package engine

import (
	"errors"
	"fmt"

	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
)

// ErrEpochRegression is returned when an input yields an epoch lower than
// one it already yielded.
var ErrEpochRegression = errors.New("input epoch regressed")

// Pump feeds one worker's input into the head of a compiled chain.
type Pump struct {
	source    stream.Iterator
	head      operator
	frontier  progress.Frontier
	exhausted bool
	metrics   *metrics.Worker
}

func newPump(source stream.Iterator, head operator, m *metrics.Worker) *Pump {
	return &Pump{source: source, head: head, metrics: m}
}

// Pump pulls at most one record from the input. It advances the chain to
// the record's epoch before injecting it and closes the chain once the
// input is exhausted.
func (p *Pump) Pump() error {
	if p.exhausted {
		return nil
	}
	rec, ok, err := p.source.Next()
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if !ok {
		p.exhausted = true
		return p.head.advance(progress.Closed)
	}

	switch {
	case rec.Epoch < p.frontier.Epoch():
		return fmt.Errorf("%w: %d after %d", ErrEpochRegression, rec.Epoch, p.frontier.Epoch())
	case rec.Epoch > p.frontier.Epoch():
		p.frontier = progress.At(rec.Epoch)
		if err := p.head.advance(p.frontier); err != nil {
			return err
		}
	}
	p.metrics.IncrementIngested()
	return p.head.push(rec)
}

// InputRemains reports whether the input may still yield records.
func (p *Pump) InputRemains() bool { return !p.exhausted }

package engine

import (
	"fmt"

	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// StepError is a failure raised while a step processed an item.
type StepError struct {
	Step int
	Kind string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// operator is one stage of a compiled chain. Records pushed into an
// operator always carry an epoch at or beyond the last frontier it was
// advanced to.
type operator interface {
	push(rec stream.Record) error
	advance(f progress.Frontier) error
}

// stage holds what every step operator shares.
type stage struct {
	index int
	kind  string
	next  operator
}

func (s *stage) fail(err error) error {
	return &StepError{Step: s.index, Kind: s.kind, Err: err}
}

func (s *stage) advance(f progress.Frontier) error { return s.next.advance(f) }

func newStage(index int, step stream.Step, next operator) stage {
	return stage{index: index, kind: step.Name(), next: next}
}

type mapOp struct {
	stage
	fn stream.MapFunc
}

func (o *mapOp) push(rec stream.Record) error {
	v, err := o.fn(rec.Value)
	if err != nil {
		return o.fail(err)
	}
	return o.next.push(stream.At(rec.Epoch, v))
}

type flatMapOp struct {
	stage
	fn stream.FlatMapFunc
}

func (o *flatMapOp) push(rec stream.Record) error {
	vs, err := o.fn(rec.Value)
	if err != nil {
		return o.fail(err)
	}
	for _, v := range vs {
		if err := o.next.push(stream.At(rec.Epoch, v)); err != nil {
			return err
		}
	}
	return nil
}

type filterOp struct {
	stage
	fn stream.FilterFunc
}

func (o *filterOp) push(rec stream.Record) error {
	keep, err := o.fn(rec.Value)
	if err != nil {
		return o.fail(err)
	}
	if !keep {
		return nil
	}
	return o.next.push(rec)
}

type inspectOp struct {
	stage
	fn stream.InspectFunc
}

func (o *inspectOp) push(rec stream.Record) error {
	if err := o.fn(rec.Value); err != nil {
		return o.fail(err)
	}
	return o.next.push(rec)
}

type inspectEpochOp struct {
	stage
	fn stream.InspectEpochFunc
}

func (o *inspectEpochOp) push(rec stream.Record) error {
	if err := o.fn(rec.Epoch, rec.Value); err != nil {
		return o.fail(err)
	}
	return o.next.push(rec)
}

// captureOp sits behind an exchange to worker 0.
type captureOp struct {
	stage
	fn      stream.CaptureFunc
	metrics *metrics.Worker
}

func (o *captureOp) push(rec stream.Record) error {
	if err := o.fn(rec.Epoch, rec.Value); err != nil {
		return o.fail(err)
	}
	o.metrics.IncrementCaptured()
	return o.next.push(rec)
}

// probeOp is the tail of every chain.
type probeOp struct {
	probe   *progress.Probe
	metrics *metrics.Worker
}

func (o *probeOp) push(stream.Record) error {
	o.metrics.IncrementEmitted()
	return nil
}

func (o *probeOp) advance(f progress.Frontier) error {
	o.probe.Observe(f)
	return nil
}

// splitKeyed destructures a (key, value) record for a keyed step.
func (s *stage) splitKeyed(rec stream.Record) (value.Value, value.Value, error) {
	k, v, err := value.SplitPair(rec.Value)
	if err != nil {
		return nil, nil, s.fail(err)
	}
	return k, v, nil
}

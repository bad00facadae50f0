// Package stream describes dataflows: an input plus an ordered list of steps.
// Descriptions are plain data; the engine package compiles and runs them.
package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCallable is returned when a step is given a nil function.
	ErrNotCallable = errors.New("step requires a non-nil function")

	// ErrInvalidInput is returned when a dataflow is built without a usable input.
	ErrInvalidInput = errors.New("invalid dataflow input")
)

// Dataflow is a linear pipeline fed by one input. Steps are appended during
// construction; the engine only reads it.
type Dataflow struct {
	input Input
	steps []Step
}

// New returns an empty dataflow reading from input.
func New(input Input) (*Dataflow, error) {
	switch in := input.(type) {
	case Singleton:
		if in.Source == nil {
			return nil, fmt.Errorf("%w: singleton without a source", ErrInvalidInput)
		}
	case *Singleton:
		if in == nil || in.Source == nil {
			return nil, fmt.Errorf("%w: singleton without a source", ErrInvalidInput)
		}
		input = *in
	case Partitioned:
		if in.Build == nil {
			return nil, fmt.Errorf("%w: partitioned input without a builder", ErrInvalidInput)
		}
	case *Partitioned:
		if in == nil || in.Build == nil {
			return nil, fmt.Errorf("%w: partitioned input without a builder", ErrInvalidInput)
		}
		input = *in
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidInput, input)
	}
	return &Dataflow{input: input}, nil
}

// Input returns the dataflow's input.
func (d *Dataflow) Input() Input { return d.input }

// Steps returns a copy of the steps in pipeline order.
func (d *Dataflow) Steps() []Step {
	steps := make([]Step, len(d.steps))
	copy(steps, d.steps)
	return steps
}

func (d *Dataflow) add(s Step, fns ...bool) error {
	for _, ok := range fns {
		if !ok {
			return fmt.Errorf("%s: %w", s.Name(), ErrNotCallable)
		}
	}
	d.steps = append(d.steps, s)
	return nil
}

// Map applies fn to every item.
func (d *Dataflow) Map(fn MapFunc) error {
	return d.add(Map{Fn: fn}, fn != nil)
}

// FlatMap emits every item fn returns, in order.
func (d *Dataflow) FlatMap(fn FlatMapFunc) error {
	return d.add(FlatMap{Fn: fn}, fn != nil)
}

// Filter keeps the items for which pred is true.
func (d *Dataflow) Filter(pred FilterFunc) error {
	return d.add(Filter{Fn: pred}, pred != nil)
}

// Inspect calls fn on every item and passes it on unchanged.
func (d *Dataflow) Inspect(fn InspectFunc) error {
	return d.add(Inspect{Fn: fn}, fn != nil)
}

// InspectEpoch calls fn with every item and its epoch.
func (d *Dataflow) InspectEpoch(fn InspectEpochFunc) error {
	return d.add(InspectEpoch{Fn: fn}, fn != nil)
}

// Reduce aggregates (key, value) pairs per key until isComplete holds.
func (d *Dataflow) Reduce(reducer ReduceFunc, isComplete CompleteFunc) error {
	return d.add(Reduce{Reducer: reducer, IsComplete: isComplete}, reducer != nil, isComplete != nil)
}

// ReduceEpoch aggregates (key, value) pairs per key and epoch across workers.
func (d *Dataflow) ReduceEpoch(reducer ReduceFunc) error {
	return d.add(ReduceEpoch{Reducer: reducer}, reducer != nil)
}

// ReduceEpochLocal aggregates (key, value) pairs per key and epoch on each
// worker without exchanging them.
func (d *Dataflow) ReduceEpochLocal(reducer ReduceFunc) error {
	return d.add(ReduceEpochLocal{Reducer: reducer}, reducer != nil)
}

// StatefulMap runs mapper over (key, value) pairs with per-key state.
func (d *Dataflow) StatefulMap(builder BuilderFunc, mapper StatefulMapFunc) error {
	return d.add(StatefulMap{Builder: builder, Mapper: mapper}, builder != nil, mapper != nil)
}

// Capture hands every item to fn on worker 0.
func (d *Dataflow) Capture(fn CaptureFunc) error {
	return d.add(Capture{Fn: fn}, fn != nil)
}

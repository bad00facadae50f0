package stream

import "github.com/tarungka/wireflow/value"

// MapFunc transforms one item into another.
type MapFunc func(v value.Value) (value.Value, error)

// FlatMapFunc transforms one item into zero or more items, emitted in order.
type FlatMapFunc func(v value.Value) ([]value.Value, error)

// FilterFunc reports whether an item passes.
type FilterFunc func(v value.Value) (bool, error)

// InspectFunc observes an item.
type InspectFunc func(v value.Value) error

// InspectEpochFunc observes an item with its epoch.
type InspectEpochFunc func(epoch Epoch, v value.Value) error

// ReduceFunc folds a value into an aggregator.
type ReduceFunc func(agg, v value.Value) (value.Value, error)

// CompleteFunc reports whether an aggregator is finished and should be emitted.
type CompleteFunc func(agg value.Value) (bool, error)

// BuilderFunc creates the initial state for a new key.
type BuilderFunc func() (value.Value, error)

// StatefulMapFunc returns the updated state and the value to emit. Returning
// value.None as the state forgets the key.
type StatefulMapFunc func(state, v value.Value) (value.Value, value.Value, error)

// CaptureFunc receives every item reaching the capture step.
type CaptureFunc func(epoch Epoch, v value.Value) error

// Step is one transform in a dataflow. The set of steps is closed; the
// engine handles each kind explicitly.
type Step interface {
	// Name returns the step kind, used in logs and errors.
	Name() string
	step()
}

type (
	Map struct{ Fn MapFunc }

	FlatMap struct{ Fn FlatMapFunc }

	Filter struct{ Fn FilterFunc }

	Inspect struct{ Fn InspectFunc }

	InspectEpoch struct{ Fn InspectEpochFunc }

	// Reduce aggregates values per key until IsComplete says the aggregator
	// is done, then emits (key, aggregator).
	Reduce struct {
		Reducer    ReduceFunc
		IsComplete CompleteFunc
	}

	// ReduceEpoch aggregates values per key within an epoch across all
	// workers and emits (key, aggregator) once the epoch closes.
	ReduceEpoch struct{ Reducer ReduceFunc }

	// ReduceEpochLocal is ReduceEpoch without the exchange: each worker
	// emits partial aggregates for the keys it saw.
	ReduceEpochLocal struct{ Reducer ReduceFunc }

	// StatefulMap keeps per-key state built by Builder and updated by Mapper.
	StatefulMap struct {
		Builder BuilderFunc
		Mapper  StatefulMapFunc
	}

	// Capture sends every item to worker 0 and hands it to Fn.
	Capture struct{ Fn CaptureFunc }
)

func (Map) Name() string              { return "map" }
func (FlatMap) Name() string          { return "flat_map" }
func (Filter) Name() string           { return "filter" }
func (Inspect) Name() string          { return "inspect" }
func (InspectEpoch) Name() string     { return "inspect_epoch" }
func (Reduce) Name() string           { return "reduce" }
func (ReduceEpoch) Name() string      { return "reduce_epoch" }
func (ReduceEpochLocal) Name() string { return "reduce_epoch_local" }
func (StatefulMap) Name() string      { return "stateful_map" }
func (Capture) Name() string          { return "capture" }

func (Map) step()              {}
func (FlatMap) step()          {}
func (Filter) step()           {}
func (Inspect) step()          {}
func (InspectEpoch) step()     {}
func (Reduce) step()           {}
func (ReduceEpoch) step()      {}
func (ReduceEpochLocal) step() {}
func (StatefulMap) step()      {}
func (Capture) step()          {}

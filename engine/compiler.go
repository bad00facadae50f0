package engine

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tarungka/wireflow/internal/communication"
	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/partitioner"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/state"
	"github.com/tarungka/wireflow/stream"
)

// inputChannel is the exchange that scatters a singleton input.
const inputChannel = 0

// compiled is one dataflow as installed on one worker.
type compiled struct {
	pump    *Pump
	probe   *progress.Probe
	inboxes map[int]*inbox
	// head is closed at start-up on workers that have no pump.
	head   operator
	closer io.Closer
}

// scope is what a worker passes to the compiler.
type scope struct {
	flow    int
	worker  int
	peers   int
	seed    uint64
	fabric  communication.Fabric
	metrics *metrics.Worker
	logger  zerolog.Logger
}

// compile builds the operator chain of flow for one worker, from the probe
// at its tail back to the input.
func compile(flow *stream.Dataflow, sc scope) (*compiled, error) {
	c := &compiled{
		probe:   &progress.Probe{},
		inboxes: make(map[int]*inbox),
	}

	var cur operator = &probeOp{probe: c.probe, metrics: sc.metrics}
	steps := flow.Steps()
	for i := len(steps) - 1; i >= 0; i-- {
		var err error
		if cur, err = c.compileStep(i, steps[i], cur, sc); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, steps[i].Name(), err)
		}
	}

	switch in := flow.Input().(type) {
	case stream.Singleton:
		part, err := partitioner.NewPartitioner(sc.peers, partitioner.WithScatter(sc.seed))
		if err != nil {
			return nil, err
		}
		head := c.exchange(inputChannel, stage{index: -1, kind: "input"}, part, false, cur, sc)
		if sc.worker == 0 {
			c.pump = newPump(in.Source, head, sc.metrics)
			c.closer, _ = in.Source.(io.Closer)
		} else {
			c.head = head
		}
	case stream.Partitioned:
		source, err := in.Build(sc.worker, sc.peers)
		if err != nil {
			return nil, fmt.Errorf("building input for worker %d: %w", sc.worker, err)
		}
		if source == nil {
			return nil, fmt.Errorf("%w: worker %d got no iterator", stream.ErrInvalidInput, sc.worker)
		}
		c.pump = newPump(source, cur, sc.metrics)
		c.closer, _ = source.(io.Closer)
	default:
		return nil, fmt.Errorf("%w: %T", stream.ErrInvalidInput, in)
	}
	return c, nil
}

func (c *compiled) compileStep(i int, step stream.Step, next operator, sc scope) (operator, error) {
	st := newStage(i, step, next)
	// Channel 0 belongs to the input, so step i exchanges on channel i+1.
	channel := i + 1

	switch s := step.(type) {
	case stream.Map:
		return &mapOp{stage: st, fn: s.Fn}, nil
	case stream.FlatMap:
		return &flatMapOp{stage: st, fn: s.Fn}, nil
	case stream.Filter:
		return &filterOp{stage: st, fn: s.Fn}, nil
	case stream.Inspect:
		return &inspectOp{stage: st, fn: s.Fn}, nil
	case stream.InspectEpoch:
		return &inspectEpochOp{stage: st, fn: s.Fn}, nil
	case stream.Reduce:
		op := &reduceOp{
			stage:      st,
			reducer:    s.Reducer,
			isComplete: s.IsComplete,
			pending:    state.NewStash(),
			aggs:       state.NewTable(),
		}
		return c.keyedExchange(channel, st, op, sc)
	case stream.ReduceEpoch:
		op := &reduceEpochOp{stage: st, reducer: s.Reducer, tables: state.NewEpochTables()}
		return c.keyedExchange(channel, st, op, sc)
	case stream.ReduceEpochLocal:
		return &reduceEpochOp{stage: st, reducer: s.Reducer, tables: state.NewEpochTables()}, nil
	case stream.StatefulMap:
		op := &statefulMapOp{
			stage:   st,
			builder: s.Builder,
			mapper:  s.Mapper,
			pending: state.NewStash(),
			states:  state.NewTable(),
		}
		return c.keyedExchange(channel, st, op, sc)
	case stream.Capture:
		part, err := partitioner.NewPartitioner(sc.peers, partitioner.WithTarget(0))
		if err != nil {
			return nil, err
		}
		op := &captureOp{stage: st, fn: s.Fn, metrics: sc.metrics}
		return c.exchange(channel, st, part, false, op, sc), nil
	default:
		return nil, fmt.Errorf("unsupported step %T", step)
	}
}

func (c *compiled) keyedExchange(channel int, st stage, next operator, sc scope) (operator, error) {
	part, err := partitioner.NewPartitioner(sc.peers)
	if err != nil {
		return nil, err
	}
	return c.exchange(channel, st, part, true, next, sc), nil
}

// exchange registers the receiving half of an exchange point on this worker
// and returns the sending half.
func (c *compiled) exchange(channel int, st stage, part *partitioner.Partitioner, keyed bool, next operator, sc scope) operator {
	c.inboxes[channel] = newInbox(sc.peers, next)
	part.Examine(sc.logger.With().Int("flow", sc.flow).Int("channel", channel).Str("step", st.kind).Logger())
	st.next = nil
	return &exchangeOp{
		stage:   st,
		flow:    sc.flow,
		channel: channel,
		worker:  sc.worker,
		keyed:   keyed,
		part:    part,
		fabric:  sc.fabric,
		metrics: sc.metrics,
	}
}

// start closes the chain of a worker without input.
func (c *compiled) start() error {
	if c.head == nil {
		return nil
	}
	return c.head.advance(progress.Closed)
}

// deliver routes an exchange message to its inbox.
func (c *compiled) deliver(msg communication.Message) error {
	in, ok := c.inboxes[msg.Channel]
	if !ok {
		return fmt.Errorf("no exchange on channel %d", msg.Channel)
	}
	return in.deliver(msg)
}

// teardown releases the input of the dataflow.
func (c *compiled) teardown() error {
	c.inboxes = nil
	c.pump = nil
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

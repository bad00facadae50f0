package engine

import (
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/state"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// reduceOp holds records until their epoch completes, then folds them per
// key in epoch order. An aggregator is emitted and dropped as soon as
// isComplete accepts it.
type reduceOp struct {
	stage
	reducer    stream.ReduceFunc
	isComplete stream.CompleteFunc

	pending *state.Stash
	aggs    *state.Table
}

func (o *reduceOp) push(rec stream.Record) error {
	o.pending.Add(rec)
	return nil
}

func (o *reduceOp) advance(f progress.Frontier) error {
	for _, rec := range o.pending.Release(f.Complete) {
		if err := o.apply(rec); err != nil {
			return err
		}
	}
	return o.next.advance(f)
}

func (o *reduceOp) apply(rec stream.Record) error {
	k, v, err := o.splitKeyed(rec)
	if err != nil {
		return err
	}
	agg, ok := o.aggs.Get(k)
	if !ok {
		agg = v
	} else if agg, err = o.reducer(agg, v); err != nil {
		return o.fail(err)
	}

	done, err := o.isComplete(agg)
	if err != nil {
		return o.fail(err)
	}
	if !done {
		o.aggs.Put(k, agg)
		return nil
	}
	o.aggs.Delete(k)
	return o.next.push(stream.At(rec.Epoch, value.Pair(k, agg)))
}

// statefulMapOp applies mapper per key in epoch order. A None state forgets
// the key, so its next value starts from builder again.
type statefulMapOp struct {
	stage
	builder stream.BuilderFunc
	mapper  stream.StatefulMapFunc

	pending *state.Stash
	states  *state.Table
}

func (o *statefulMapOp) push(rec stream.Record) error {
	o.pending.Add(rec)
	return nil
}

func (o *statefulMapOp) advance(f progress.Frontier) error {
	for _, rec := range o.pending.Release(f.Complete) {
		if err := o.apply(rec); err != nil {
			return err
		}
	}
	return o.next.advance(f)
}

func (o *statefulMapOp) apply(rec stream.Record) error {
	k, v, err := o.splitKeyed(rec)
	if err != nil {
		return err
	}
	st, ok := o.states.Get(k)
	if !ok {
		if st, err = o.builder(); err != nil {
			return o.fail(err)
		}
	}

	next, out, err := o.mapper(st, v)
	if err != nil {
		return o.fail(err)
	}
	if next == nil || value.IsNone(next) {
		o.states.Delete(k)
	} else {
		o.states.Put(k, next)
	}
	if out == nil {
		out = value.None{}
	}
	return o.next.push(stream.At(rec.Epoch, value.Pair(k, out)))
}

// reduceEpochOp folds values on arrival into per-epoch tables and emits
// every aggregator of an epoch once the frontier passes it. Used for both
// ReduceEpoch (behind an exchange) and ReduceEpochLocal.
type reduceEpochOp struct {
	stage
	reducer stream.ReduceFunc
	tables  *state.EpochTables
}

func (o *reduceEpochOp) push(rec stream.Record) error {
	k, v, err := o.splitKeyed(rec)
	if err != nil {
		return err
	}
	t := o.tables.At(rec.Epoch)
	agg, ok := t.Get(k)
	if !ok {
		t.Put(k, v)
		return nil
	}
	if agg, err = o.reducer(agg, v); err != nil {
		return o.fail(err)
	}
	t.Put(k, agg)
	return nil
}

func (o *reduceEpochOp) advance(f progress.Frontier) error {
	err := o.tables.Drain(f.Complete, func(epoch stream.Epoch, t *state.Table) error {
		var err error
		t.Range(func(k, agg value.Value) bool {
			err = o.next.push(stream.At(epoch, value.Pair(k, agg)))
			return err == nil
		})
		return err
	})
	if err != nil {
		return err
	}
	return o.next.advance(f)
}

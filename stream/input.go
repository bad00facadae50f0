package stream

// Iterator pulls records from an external source. Next returns ok=false once
// the source is exhausted; after that it is not called again. Iterators that
// also implement io.Closer are closed when the worker tears down.
type Iterator interface {
	Next() (rec Record, ok bool, err error)
}

// IteratorFunc adapts a function to an Iterator.
type IteratorFunc func() (Record, bool, error)

// Next calls f.
func (f IteratorFunc) Next() (Record, bool, error) { return f() }

// FromRecords returns an iterator over a fixed list of records.
func FromRecords(recs ...Record) Iterator {
	i := 0
	return IteratorFunc(func() (Record, bool, error) {
		if i >= len(recs) {
			return Record{}, false, nil
		}
		rec := recs[i]
		i++
		return rec, true, nil
	})
}

// Input is where a dataflow's items come from: either Singleton or Partitioned.
type Input interface {
	input()
}

// Singleton is one global source consumed by worker 0 only. Its items are
// scattered across all workers.
type Singleton struct {
	Source Iterator
}

// BuildFunc returns the iterator for one worker.
type BuildFunc func(index, total int) (Iterator, error)

// Partitioned gives every worker its own source. Sources must produce
// disjoint data; nothing is deduplicated.
type Partitioned struct {
	Build BuildFunc
}

func (Singleton) input()   {}
func (Partitioned) input() {}

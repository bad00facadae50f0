package state

import (
	"slices"

	"github.com/tarungka/wireflow/stream"
)

// EpochTables keeps one Table per epoch, for aggregations that reset at
// every epoch boundary.
type EpochTables struct {
	tables map[stream.Epoch]*Table
}

// NewEpochTables returns an empty set of tables.
func NewEpochTables() *EpochTables {
	return &EpochTables{tables: make(map[stream.Epoch]*Table)}
}

// At returns the table for epoch, creating it if needed.
func (e *EpochTables) At(epoch stream.Epoch) *Table {
	t, ok := e.tables[epoch]
	if !ok {
		t = NewTable()
		e.tables[epoch] = t
	}
	return t
}

// Len returns the number of epochs holding a table.
func (e *EpochTables) Len() int { return len(e.tables) }

// Drain removes the tables of every epoch for which complete returns true and
// hands them to fn in ascending epoch order. It stops at the first error.
func (e *EpochTables) Drain(complete func(stream.Epoch) bool, fn func(stream.Epoch, *Table) error) error {
	var ready []stream.Epoch
	for epoch := range e.tables {
		if complete(epoch) {
			ready = append(ready, epoch)
		}
	}
	slices.Sort(ready)
	for _, epoch := range ready {
		t := e.tables[epoch]
		delete(e.tables, epoch)
		if err := fn(epoch, t); err != nil {
			return err
		}
	}
	return nil
}

// Stash holds records until their epoch completes.
type Stash struct {
	pending map[stream.Epoch][]stream.Record
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{pending: make(map[stream.Epoch][]stream.Record)}
}

// Add holds rec until its epoch completes.
func (s *Stash) Add(rec stream.Record) {
	s.pending[rec.Epoch] = append(s.pending[rec.Epoch], rec)
}

// Len returns the number of held records.
func (s *Stash) Len() int {
	n := 0
	for _, recs := range s.pending {
		n += len(recs)
	}
	return n
}

// Release removes the records of every complete epoch and returns them in
// ascending epoch order, arrival order within an epoch.
func (s *Stash) Release(complete func(stream.Epoch) bool) []stream.Record {
	var ready []stream.Epoch
	for epoch := range s.pending {
		if complete(epoch) {
			ready = append(ready, epoch)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	slices.Sort(ready)
	var out []stream.Record
	for _, epoch := range ready {
		out = append(out, s.pending[epoch]...)
		delete(s.pending, epoch)
	}
	return out
}

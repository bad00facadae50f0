// Package state holds the per-key aggregators and states of keyed operators.
// Tables are owned by a single worker and are not safe for concurrent use;
// routing guarantees each key is only ever touched by its owner.
package state

import (
	"github.com/tarungka/wireflow/value"
)

type entry struct {
	key value.Value
	val value.Value
}

// Table maps keys to values using value equality. Keys are bucketed by
// exchange hash.
type Table struct {
	buckets map[uint64][]entry
	size    int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{buckets: make(map[uint64][]entry)}
}

func (t *Table) find(key value.Value) (uint64, int) {
	h := key.ExchangeHash()
	for i, e := range t.buckets[h] {
		if e.key.Equal(key) {
			return h, i
		}
	}
	return h, -1
}

// Get returns the value stored for key.
func (t *Table) Get(key value.Value) (value.Value, bool) {
	h, i := t.find(key)
	if i < 0 {
		return nil, false
	}
	return t.buckets[h][i].val, true
}

// Put stores val for key, replacing any previous value.
func (t *Table) Put(key, val value.Value) {
	h, i := t.find(key)
	if i >= 0 {
		t.buckets[h][i].val = val
		return
	}
	t.buckets[h] = append(t.buckets[h], entry{key: key, val: val})
	t.size++
}

// Delete forgets key. It reports whether the key was present.
func (t *Table) Delete(key value.Value) bool {
	h, i := t.find(key)
	if i < 0 {
		return false
	}
	b := t.buckets[h]
	b[i] = b[len(b)-1]
	b = b[:len(b)-1]
	if len(b) == 0 {
		delete(t.buckets, h)
	} else {
		t.buckets[h] = b
	}
	t.size--
	return true
}

// Len returns the number of keys.
func (t *Table) Len() int { return t.size }

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (t *Table) Range(fn func(key, val value.Value) bool) {
	for _, b := range t.buckets {
		for _, e := range b {
			if !fn(e.key, e.val) {
				return
			}
		}
	}
}

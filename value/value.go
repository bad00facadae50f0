// Package value defines the contract every item flowing through a dataflow
// satisfies, along with the builtin item kinds.
//
// Items are compared by value. Routing between workers uses ExchangeHash,
// which must be a pure function of the value so that workers in different
// processes agree on where a key lives. Items crossing a process boundary are
// encoded with Marshal and decoded with Unmarshal.
package value

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotPair is returned when a (key, value) pair was expected.
	ErrNotPair = errors.New("value is not a (key, value) pair")

	// ErrUnknownType is returned when decoding a custom type that was never registered.
	ErrUnknownType = errors.New("unknown value type")
)

// Value is the capability set required of every item.
type Value interface {
	// Equal reports whether other holds the same value.
	Equal(other Value) bool
	// ExchangeHash returns a hash that is stable across processes.
	ExchangeHash() uint64
	// String returns a debug representation.
	String() string
}

// Kind tags the builtin representations on the wire and in hashes.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindTuple
	KindCustom
)

// String is a UTF-8 string item.
type String string

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == s
}

func (s String) ExchangeHash() uint64 { return hashOf(s) }

func (s String) String() string { return strconv.Quote(string(s)) }

// Int is a signed 64-bit integer item.
type Int int64

func (i Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && o == i
}

func (i Int) ExchangeHash() uint64 { return hashOf(i) }

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a 64-bit floating point item.
type Float float64

func (f Float) Equal(other Value) bool {
	o, ok := other.(Float)
	return ok && o == f
}

func (f Float) ExchangeHash() uint64 { return hashOf(f) }

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Bool is a boolean item.
type Bool bool

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == b
}

func (b Bool) ExchangeHash() uint64 { return hashOf(b) }

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Bytes is an opaque byte string item.
type Bytes []byte

func (b Bytes) Equal(other Value) bool {
	o, ok := other.(Bytes)
	return ok && bytes.Equal(o, b)
}

func (b Bytes) ExchangeHash() uint64 { return hashOf(b) }

func (b Bytes) String() string { return fmt.Sprintf("b%q", []byte(b)) }

// Tuple is a fixed sequence of items. A two element tuple is a (key, value) pair.
type Tuple []Value

func (t Tuple) Equal(other Value) bool {
	o, ok := other.(Tuple)
	if !ok || len(o) != len(t) {
		return false
	}
	for i := range t {
		if !equal(t[i], o[i]) {
			return false
		}
	}
	return true
}

func (t Tuple) ExchangeHash() uint64 { return hashOf(t) }

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		if v == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// None is the empty value. Returning it as the new state from a stateful map
// drops the state kept for that key.
type None struct{}

func (None) Equal(other Value) bool {
	_, ok := other.(None)
	return ok
}

func (n None) ExchangeHash() uint64 { return hashOf(n) }

func (None) String() string { return "None" }

// IsNone reports whether v is the empty value.
func IsNone(v Value) bool {
	_, ok := v.(None)
	return ok || v == nil
}

// Pair builds a (key, value) tuple.
func Pair(key, val Value) Tuple {
	return Tuple{key, val}
}

// SplitPair destructures a (key, value) tuple.
func SplitPair(v Value) (Value, Value, error) {
	t, ok := v.(Tuple)
	if !ok || len(t) != 2 {
		return nil, nil, fmt.Errorf("%w: got %s", ErrNotPair, debug(v))
	}
	return t[0], t[1], nil
}

func equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func debug(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

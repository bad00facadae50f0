package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/value"
)

func identity(v value.Value) (value.Value, error) { return v, nil }

func TestNewValidatesInput(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(Singleton{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(Partitioned{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err := New(&Singleton{Source: FromRecords()})
	require.NoError(t, err)
	_, ok := d.Input().(Singleton)
	assert.True(t, ok, "pointer inputs are stored by value")
}

func TestStepsAppendInOrder(t *testing.T) {
	d, err := New(Singleton{Source: FromRecords()})
	require.NoError(t, err)

	require.NoError(t, d.Map(identity))
	require.NoError(t, d.Filter(func(value.Value) (bool, error) { return true, nil }))
	require.NoError(t, d.ReduceEpoch(func(a, b value.Value) (value.Value, error) { return a, nil }))
	require.NoError(t, d.Capture(func(Epoch, value.Value) error { return nil }))

	var names []string
	for _, s := range d.Steps() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"map", "filter", "reduce_epoch", "capture"}, names)
}

func TestNilCallableIsRejected(t *testing.T) {
	d, err := New(Singleton{Source: FromRecords()})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Map(nil), ErrNotCallable)
	assert.ErrorIs(t, d.Reduce(func(a, b value.Value) (value.Value, error) { return a, nil }, nil), ErrNotCallable)
	assert.ErrorIs(t, d.StatefulMap(nil, nil), ErrNotCallable)
	assert.Empty(t, d.Steps(), "rejected steps are not appended")
}

func TestFromRecords(t *testing.T) {
	it := FromRecords(At(0, value.String("a")), At(1, value.String("b")))

	rec, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, At(0, value.String("a")), rec)

	_, ok, _ = it.Next()
	require.True(t, ok)

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

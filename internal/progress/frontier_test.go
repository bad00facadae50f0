package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierOrdering(t *testing.T) {
	assert.True(t, At(1).Less(At(2)))
	assert.False(t, At(2).Less(At(2)))
	assert.True(t, At(100).Less(Closed))
	assert.False(t, Closed.Less(At(100)))
	assert.Equal(t, At(3), Min(At(3), Closed))
	assert.Equal(t, At(1), Min(At(3), At(1)))

	assert.True(t, At(3).Complete(2))
	assert.False(t, At(3).Complete(3))
	assert.True(t, Closed.Complete(1<<60))
}

func TestMergerTakesMinimum(t *testing.T) {
	m := NewMerger(2)

	f, moved, err := m.Update(0, At(5))
	require.NoError(t, err)
	assert.False(t, moved, "sender 1 still holds epoch 0")
	assert.Equal(t, At(0), f)

	f, moved, err = m.Update(1, At(3))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, At(3), f)

	_, _, err = m.Update(1, Closed)
	require.NoError(t, err)
	f, moved, err = m.Update(0, Closed)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, f.IsClosed())
}

func TestMergerRejectsRegression(t *testing.T) {
	m := NewMerger(1)
	_, _, err := m.Update(0, At(4))
	require.NoError(t, err)
	_, _, err = m.Update(0, At(2))
	assert.ErrorIs(t, err, ErrRegression)
	_, _, err = m.Update(3, At(9))
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	var p Probe
	assert.False(t, p.Done())
	p.Observe(At(7))
	assert.Equal(t, At(7), p.Frontier())
	p.Observe(Closed)
	assert.True(t, p.Done())
	assert.True(t, p.Frontier().IsClosed())
}

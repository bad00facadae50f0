package partitioner

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/value"
)

func TestHashRoutingIsDeterministic(t *testing.T) {
	p, err := NewPartitioner(7)
	require.NoError(t, err)
	assert.Equal(t, ByHash, p.Strategy())

	keys := []value.Value{value.String("a"), value.Int(12), value.Pair(value.String("x"), value.Int(1))}
	for _, k := range keys {
		first := p.Route(k)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 7)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, p.Route(k), "key %s", k)
		}

		other, err := NewPartitioner(7)
		require.NoError(t, err)
		assert.Equal(t, first, other.Route(k), "independent partitioners agree")
	}
}

func TestFixedTarget(t *testing.T) {
	p, err := NewPartitioner(4, WithTarget(0))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, p.Route(value.Int(int64(i))))
	}

	_, err = NewPartitioner(4, WithTarget(4))
	assert.Error(t, err)
}

func TestScatterCoversAllWorkers(t *testing.T) {
	p, err := NewPartitioner(3, WithScatter(1))
	require.NoError(t, err)
	seen := map[int]bool{}
	for i := 0; i < 300; i++ {
		seen[p.Route(value.String("same"))] = true
	}
	assert.Len(t, seen, 3)
}

func TestNeedsPeers(t *testing.T) {
	_, err := NewPartitioner(0)
	assert.Error(t, err)
}

func TestExamineLogsRouting(t *testing.T) {
	p, err := NewPartitioner(4, WithTarget(2))
	require.NoError(t, err)

	var buf bytes.Buffer
	p.Examine(zerolog.New(&buf).Level(zerolog.DebugLevel))
	assert.Contains(t, buf.String(), `"peers":4`)
	assert.Contains(t, buf.String(), `"strategy":"fixed"`)
	assert.Contains(t, buf.String(), `"target":2`)
}

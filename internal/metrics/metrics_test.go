package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()
	w0 := r.Worker(0)
	w1 := r.Worker(1)
	assert.Same(t, w0, r.Worker(0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w0.IncrementIngested()
			w1.IncrementExchanged()
		}()
	}
	wg.Wait()
	w1.IncrementFailures()

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, 0, snap[0].Worker)
	assert.Equal(t, uint64(10), snap[0].Ingested)
	assert.Equal(t, uint64(10), snap[1].Exchanged)

	total := r.Totals()
	assert.Equal(t, uint64(10), total.Ingested)
	assert.Equal(t, uint64(1), total.Failures)
}

func TestWorkerLifecycle(t *testing.T) {
	var w Worker
	assert.False(t, w.Stats().Running)
	w.MarkStarted()
	assert.True(t, w.Stats().Running)
	w.MarkFinished()
	assert.False(t, w.Stats().Running)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	w := r.Worker(3)
	w.IncrementCaptured()
	assert.Equal(t, uint64(1), w.Stats().Captured)
}

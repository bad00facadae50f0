// Package metrics keeps per-worker counters for running dataflows.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Worker holds the counters of one worker thread. Counters are updated by the
// owning worker and read by anyone.
type Worker struct {
	index int

	ingested  uint64 // records pulled from inputs
	exchanged uint64 // records sent across an exchange
	emitted   uint64 // records reaching the tail of a dataflow
	captured  uint64 // records handed to a capture function
	failures  uint64 // fatal failures reported by this worker

	startedAt  atomic.Int64
	finishedAt atomic.Int64
}

func (w *Worker) IncrementIngested()  { atomic.AddUint64(&w.ingested, 1) }
func (w *Worker) IncrementExchanged() { atomic.AddUint64(&w.exchanged, 1) }
func (w *Worker) IncrementEmitted()   { atomic.AddUint64(&w.emitted, 1) }
func (w *Worker) IncrementCaptured()  { atomic.AddUint64(&w.captured, 1) }
func (w *Worker) IncrementFailures()  { atomic.AddUint64(&w.failures, 1) }

// MarkStarted records when the worker loop began.
func (w *Worker) MarkStarted() { w.startedAt.Store(time.Now().UnixNano()) }

// MarkFinished records when the worker loop stopped.
func (w *Worker) MarkFinished() { w.finishedAt.Store(time.Now().UnixNano()) }

// WorkerStats is a snapshot of one worker's counters.
type WorkerStats struct {
	Worker    int           `json:"worker"`
	Ingested  uint64        `json:"ingested"`
	Exchanged uint64        `json:"exchanged"`
	Emitted   uint64        `json:"emitted"`
	Captured  uint64        `json:"captured"`
	Failures  uint64        `json:"failures"`
	Running   bool          `json:"running"`
	Uptime    time.Duration `json:"uptime_ns"`
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() WorkerStats {
	started := w.startedAt.Load()
	finished := w.finishedAt.Load()
	stats := WorkerStats{
		Worker:    w.index,
		Ingested:  atomic.LoadUint64(&w.ingested),
		Exchanged: atomic.LoadUint64(&w.exchanged),
		Emitted:   atomic.LoadUint64(&w.emitted),
		Captured:  atomic.LoadUint64(&w.captured),
		Failures:  atomic.LoadUint64(&w.failures),
		Running:   started != 0 && finished == 0,
	}
	switch {
	case started == 0:
	case finished == 0:
		stats.Uptime = time.Since(time.Unix(0, started))
	default:
		stats.Uptime = time.Duration(finished - started)
	}
	return stats
}

// Registry collects the workers of the runs in this process.
type Registry struct {
	mu      sync.RWMutex
	workers map[int]*Worker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[int]*Worker)}
}

// Worker returns the counters for a global worker index, creating them on
// first use. A nil registry hands out detached counters.
func (r *Registry) Worker(index int) *Worker {
	if r == nil {
		return &Worker{index: index}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[index]
	if !ok {
		w = &Worker{index: index}
		r.workers[index] = w
	}
	return w
}

// Snapshot returns the stats of every registered worker ordered by index.
func (r *Registry) Snapshot() []WorkerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make([]WorkerStats, 0, len(r.workers))
	for _, w := range r.workers {
		stats = append(stats, w.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Worker < stats[j].Worker })
	return stats
}

// Totals sums the counters of every registered worker.
func (r *Registry) Totals() WorkerStats {
	total := WorkerStats{Worker: -1}
	for _, s := range r.Snapshot() {
		total.Ingested += s.Ingested
		total.Exchanged += s.Exchanged
		total.Emitted += s.Emitted
		total.Captured += s.Captured
		total.Failures += s.Failures
		total.Running = total.Running || s.Running
	}
	return total
}

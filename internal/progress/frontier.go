// Package progress tracks epoch completion. A frontier at some point of a
// dataflow says which epochs can still show up there: every epoch strictly
// below it is complete, and a closed frontier admits nothing more.
package progress

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tarungka/wireflow/stream"
)

// ErrRegression is returned when a frontier moves backwards.
var ErrRegression = errors.New("frontier moved backwards")

// Frontier is the lower bound on epochs that may still arrive.
type Frontier struct {
	epoch  stream.Epoch
	closed bool
}

// Closed is the frontier after which no data can arrive.
var Closed = Frontier{closed: true}

// At returns the frontier admitting epochs >= epoch.
func At(epoch stream.Epoch) Frontier {
	return Frontier{epoch: epoch}
}

// Epoch returns the lowest epoch that may still arrive. It is meaningless
// for a closed frontier.
func (f Frontier) Epoch() stream.Epoch { return f.epoch }

// IsClosed reports whether no more data can arrive.
func (f Frontier) IsClosed() bool { return f.closed }

// Complete reports whether epoch can no longer receive data.
func (f Frontier) Complete(epoch stream.Epoch) bool {
	return f.closed || epoch < f.epoch
}

// Less reports whether f is strictly behind other.
func (f Frontier) Less(other Frontier) bool {
	switch {
	case f.closed:
		return false
	case other.closed:
		return true
	default:
		return f.epoch < other.epoch
	}
}

func (f Frontier) String() string {
	if f.closed {
		return "closed"
	}
	return fmt.Sprintf("%d", f.epoch)
}

// Min returns the earlier of two frontiers.
func Min(a, b Frontier) Frontier {
	if b.Less(a) {
		return b
	}
	return a
}

// Merger combines the frontiers reported by several senders. The merged
// frontier is the minimum across senders; it starts at epoch 0.
type Merger struct {
	senders []Frontier
	current Frontier
}

// NewMerger tracks n senders.
func NewMerger(n int) *Merger {
	return &Merger{senders: make([]Frontier, n)}
}

// Update records a new frontier for sender and returns the merged frontier
// and whether it moved.
func (m *Merger) Update(sender int, f Frontier) (Frontier, bool, error) {
	if sender < 0 || sender >= len(m.senders) {
		return m.current, false, fmt.Errorf("unknown sender %d of %d", sender, len(m.senders))
	}
	if f.Less(m.senders[sender]) {
		return m.current, false, fmt.Errorf("%w: sender %d went from %s to %s", ErrRegression, sender, m.senders[sender], f)
	}
	m.senders[sender] = f

	merged := Closed
	for _, s := range m.senders {
		merged = Min(merged, s)
	}
	if merged == m.current {
		return merged, false, nil
	}
	m.current = merged
	return merged, true, nil
}

// Frontier returns the merged frontier.
func (m *Merger) Frontier() Frontier { return m.current }

// Probe observes the frontier at the tail of a dataflow. It is written by the
// owning worker and may be read from anywhere.
type Probe struct {
	closed atomic.Bool
	epoch  atomic.Uint64
}

// Observe records the tail frontier.
func (p *Probe) Observe(f Frontier) {
	if f.IsClosed() {
		p.closed.Store(true)
		return
	}
	p.epoch.Store(uint64(f.Epoch()))
}

// Done reports whether the tail can never receive more data.
func (p *Probe) Done() bool { return p.closed.Load() }

// Frontier returns the last observed frontier.
func (p *Probe) Frontier() Frontier {
	if p.closed.Load() {
		return Closed
	}
	return At(stream.Epoch(p.epoch.Load()))
}

package partitioner

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/tarungka/wireflow/value"
)

// Strategy picks how a partitioner chooses a destination worker.
type Strategy int

const (
	// ByHash sends a key to ExchangeHash(key) mod peers.
	ByHash Strategy = iota
	// Fixed sends everything to one worker.
	Fixed
	// Scatter sends every item to a random worker.
	Scatter
)

func (s Strategy) String() string {
	switch s {
	case ByHash:
		return "hash"
	case Fixed:
		return "fixed"
	case Scatter:
		return "scatter"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Partitioner routes items to one of a fixed number of workers.
type Partitioner struct {
	// Number of partitions
	peers int
	// Routing strategy
	strategy Strategy
	// Destination for Fixed
	target int
	// Source of randomness for Scatter
	rnd *rand.Rand
}

type PartitionerOption func(*Partitioner)

// WithTarget routes every item to worker target.
func WithTarget(target int) PartitionerOption {
	return func(p *Partitioner) {
		p.strategy = Fixed
		p.target = target
	}
}

// WithScatter routes every item to a random worker, seeded by seed.
func WithScatter(seed uint64) PartitionerOption {
	return func(p *Partitioner) {
		p.strategy = Scatter
		p.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewPartitioner returns a partitioner over peers workers. Without options it
// routes by exchange hash.
func NewPartitioner(peers int, opts ...PartitionerOption) (*Partitioner, error) {
	if peers <= 0 {
		return nil, fmt.Errorf("partitioner needs at least one peer, got %d", peers)
	}

	// Create a default partitioner with basic values
	p := &Partitioner{
		peers:    peers,
		strategy: ByHash,
	}

	// Apply any optional configurations
	for _, opt := range opts {
		opt(p)
	}

	if p.strategy == Fixed && (p.target < 0 || p.target >= peers) {
		return nil, fmt.Errorf("target worker %d out of range [0, %d)", p.target, peers)
	}
	return p, nil
}

// Route returns the worker that owns key.
func (p *Partitioner) Route(key value.Value) int {
	switch p.strategy {
	case Fixed:
		return p.target
	case Scatter:
		return p.rnd.IntN(p.peers)
	default:
		return Owner(key, p.peers)
	}
}

// Peers returns the number of workers routed over.
func (p *Partitioner) Peers() int { return p.peers }

// Strategy returns the routing strategy.
func (p *Partitioner) Strategy() Strategy { return p.strategy }

// Examine logs how p routes.
func (p *Partitioner) Examine(l zerolog.Logger) {
	l.Debug().
		Int("peers", p.peers).
		Stringer("strategy", p.strategy).
		Int("target", p.target).
		Msg("partitioner")
}

// Owner returns the worker responsible for key among peers workers.
func Owner(key value.Value, peers int) int {
	return int(key.ExchangeHash() % uint64(peers))
}

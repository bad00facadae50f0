// Package communication moves exchange traffic between workers: through
// in-memory mailboxes between workers of one process, and over TCP between
// processes. Messages from one worker to another are delivered in the order
// they were sent.
package communication

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
)

var (
	// ErrUnknownWorker is returned when a message targets a worker outside the cluster.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrFabricSetup is returned when the network mesh cannot be established.
	ErrFabricSetup = errors.New("failed to set up communication fabric")

	// ErrClosed is returned when sending on a closed fabric.
	ErrClosed = errors.New("communication fabric closed")
)

// Kind is the type of a message.
type Kind uint8

const (
	// KindData carries one record of an exchange.
	KindData Kind = iota + 1
	// KindFrontier carries the sender's frontier on an exchange.
	KindFrontier
	// KindAbort tells peer processes that this process is stopping on failure.
	KindAbort
	kindHello
	kindGoodbye
)

// Message is one unit of exchange traffic. From and To are global worker
// indices; Flow and Channel name the exchange point it belongs to.
type Message struct {
	Kind     Kind
	Flow     int
	Channel  int
	From     int
	To       int
	Record   stream.Record
	Frontier progress.Frontier
}

func (m Message) String() string {
	switch m.Kind {
	case KindData:
		return fmt.Sprintf("data[%d/%d %d->%d %s]", m.Flow, m.Channel, m.From, m.To, m.Record)
	case KindFrontier:
		return fmt.Sprintf("frontier[%d/%d %d->%d %s]", m.Flow, m.Channel, m.From, m.To, m.Frontier)
	default:
		return fmt.Sprintf("message[kind %d]", m.Kind)
	}
}

// Fabric connects every worker of a cluster.
type Fabric interface {
	// Workers returns the total number of workers across all processes.
	Workers() int
	// Mailbox returns the inbox of a worker hosted in this process.
	Mailbox(worker int) *Mailbox
	// Send delivers msg to msg.To. It never blocks on the receiver.
	Send(msg Message) error
	// Abort tells peer processes to stop.
	Abort(reason error)
	// Close releases the fabric after local workers are done.
	Close() error
}

// Mailbox is an unbounded inbox written by any number of senders and read by
// its owning worker.
type Mailbox struct {
	mu    sync.Mutex
	queue []Message
}

// Put appends msg.
func (m *Mailbox) Put(msg Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
}

// Drain appends every queued message to into, empties the mailbox, and
// returns the extended slice.
func (m *Mailbox) Drain(into []Message) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	into = append(into, m.queue...)
	clear(m.queue)
	m.queue = m.queue[:0]
	return into
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Local connects the worker threads of a single process.
type Local struct {
	mailboxes []*Mailbox
}

// NewLocal returns a fabric for workers threads sharing memory.
func NewLocal(workers int) *Local {
	l := &Local{mailboxes: make([]*Mailbox, workers)}
	for i := range l.mailboxes {
		l.mailboxes[i] = &Mailbox{}
	}
	return l
}

func (l *Local) Workers() int { return len(l.mailboxes) }

func (l *Local) Mailbox(worker int) *Mailbox {
	if worker < 0 || worker >= len(l.mailboxes) {
		return nil
	}
	return l.mailboxes[worker]
}

func (l *Local) Send(msg Message) error {
	mb := l.Mailbox(msg.To)
	if mb == nil {
		return fmt.Errorf("%w: %d", ErrUnknownWorker, msg.To)
	}
	mb.Put(msg)
	return nil
}

// Abort is a no-op: every worker of a local fabric shares the supervisor.
func (l *Local) Abort(error) {}

func (l *Local) Close() error { return nil }

package communication

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tarungka/wireflow/internal/logger"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/internal/utils"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

const (
	closeTimeout     = 5 * time.Second
	handshakeTimeout = 5 * time.Second
)

// frame is the wire form of a message between processes.
type frame struct {
	Kind    Kind   `codec:"k"`
	Flow    int    `codec:"f,omitempty"`
	Channel int    `codec:"c,omitempty"`
	From    int    `codec:"s,omitempty"`
	To      int    `codec:"t,omitempty"`
	Epoch   uint64 `codec:"e,omitempty"`
	Closed  bool   `codec:"x,omitempty"`
	Payload []byte `codec:"p,omitempty"`
	Reason  string `codec:"r,omitempty"`
}

func toFrame(msg Message) (frame, error) {
	f := frame{Kind: msg.Kind, Flow: msg.Flow, Channel: msg.Channel, From: msg.From, To: msg.To}
	switch msg.Kind {
	case KindData:
		payload, err := value.Marshal(msg.Record.Value)
		if err != nil {
			return frame{}, err
		}
		f.Epoch = uint64(msg.Record.Epoch)
		f.Payload = payload
	case KindFrontier:
		f.Epoch = uint64(msg.Frontier.Epoch())
		f.Closed = msg.Frontier.IsClosed()
	}
	return f, nil
}

func (f frame) message() (Message, error) {
	msg := Message{Kind: f.Kind, Flow: f.Flow, Channel: f.Channel, From: f.From, To: f.To}
	switch f.Kind {
	case KindData:
		v, err := value.Unmarshal(f.Payload)
		if err != nil {
			return Message{}, err
		}
		msg.Record = stream.At(stream.Epoch(f.Epoch), v)
	case KindFrontier:
		if f.Closed {
			msg.Frontier = progress.Closed
		} else {
			msg.Frontier = progress.At(stream.Epoch(f.Epoch))
		}
	}
	return msg, nil
}

// NetworkConfig describes this process's place in a multi-process cluster.
type NetworkConfig struct {
	// Addresses lists the listen address of every process, in process order.
	Addresses []string
	// Process is the index of this process in Addresses.
	Process int
	// Threads is the number of workers in each process.
	Threads int

	DialAttempts int
	DialInterval time.Duration

	// OnPeerFailure is called, possibly many times, when a peer aborts or
	// its connection is lost before it said goodbye.
	OnPeerFailure func(error)
}

// Network connects the workers of several processes over a TCP mesh. Each
// process dials every other process once and sends on that connection;
// it receives on the connections its peers dialed.
type Network struct {
	cfg       NetworkConfig
	mailboxes []*Mailbox
	listener  net.Listener
	outbound  []*peerWriter
	inbound   []net.Conn

	closing   atomic.Bool
	abortOnce sync.Once
	closeOnce sync.Once
	readers   sync.WaitGroup

	logger zerolog.Logger
}

// NewNetwork listens on this process's address, connects to every peer and
// waits until every peer has connected back. It fails with ErrFabricSetup
// when the mesh is not complete within the dial window.
func NewNetwork(ctx context.Context, cfg NetworkConfig) (*Network, error) {
	processes := len(cfg.Addresses)
	if cfg.Process < 0 || cfg.Process >= processes || cfg.Threads < 1 {
		return nil, fmt.Errorf("%w: process %d of %d with %d thread(s)", ErrFabricSetup, cfg.Process, processes, cfg.Threads)
	}
	if cfg.OnPeerFailure == nil {
		cfg.OnPeerFailure = func(error) {}
	}

	n := &Network{
		cfg:       cfg,
		mailboxes: make([]*Mailbox, cfg.Threads),
		outbound:  make([]*peerWriter, processes),
		inbound:   make([]net.Conn, processes),
		logger:    logger.GetLogger("communication").With().Int("process", cfg.Process).Logger(),
	}
	for i := range n.mailboxes {
		n.mailboxes[i] = &Mailbox{}
	}

	ln, err := net.Listen("tcp", cfg.Addresses[cfg.Process])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFabricSetup, err)
	}
	n.listener = ln
	n.logger.Info().Msgf("listening on %s", ln.Addr())

	joiner := NewJoiner(cfg.DialAttempts, cfg.DialInterval)
	setupCtx, cancel := context.WithTimeout(ctx, joiner.Window()+time.Second)
	defer cancel()

	accepted := make(chan error, 1)
	go func() { accepted <- n.accept(processes - 1) }()

	g, gctx := errgroup.WithContext(setupCtx)
	for p, addr := range cfg.Addresses {
		if p == cfg.Process {
			continue
		}
		g.Go(func() error {
			conn, err := joiner.Do(gctx, addr)
			if err != nil {
				return err
			}
			w := newPeerWriter(conn, p, n)
			n.outbound[p] = w
			w.enqueue(frame{Kind: kindHello, From: cfg.Process})
			return nil
		})
	}

	fail := func(err error, drain bool) (*Network, error) {
		n.closing.Store(true)
		n.listener.Close()
		if drain {
			<-accepted
		}
		n.teardown()
		return nil, fmt.Errorf("%w: %v", ErrFabricSetup, err)
	}

	if err := g.Wait(); err != nil {
		return fail(err, true)
	}

	select {
	case err := <-accepted:
		if err != nil {
			return fail(err, false)
		}
	case <-setupCtx.Done():
		return fail(fmt.Errorf("waiting for peers: %w", setupCtx.Err()), true)
	}

	n.logger.Info().Msgf("connected to %d peer(s)", processes-1)
	return n, nil
}

// accept takes one connection from every peer and starts reading from it.
func (n *Network) accept(peers int) error {
	for got := 0; got < peers; {
		conn, err := n.listener.Accept()
		if err != nil {
			return err
		}
		dec := codec.NewDecoder(bufio.NewReader(conn), utils.MsgpackHandle())
		var hello frame
		conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		err = dec.Decode(&hello)
		conn.SetReadDeadline(time.Time{})
		if err != nil || hello.Kind != kindHello {
			n.logger.Warn().Err(err).Msgf("dropping connection from %s without handshake", conn.RemoteAddr())
			conn.Close()
			continue
		}
		if hello.From < 0 || hello.From >= len(n.inbound) || hello.From == n.cfg.Process || n.inbound[hello.From] != nil {
			n.logger.Warn().Msgf("dropping duplicate or unknown peer %d", hello.From)
			conn.Close()
			continue
		}
		n.inbound[hello.From] = conn
		n.readers.Add(1)
		go n.read(hello.From, conn, dec)
		got++
	}
	return nil
}

func (n *Network) read(peer int, conn net.Conn, dec *codec.Decoder) {
	defer n.readers.Done()
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if n.closing.Load() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("peer %d disconnected without goodbye", peer)
			}
			n.logger.Error().Err(err).Msgf("lost connection to peer %d", peer)
			n.cfg.OnPeerFailure(err)
			return
		}

		switch f.Kind {
		case kindGoodbye:
			n.logger.Debug().Msgf("peer %d said goodbye", peer)
			return
		case KindAbort:
			n.logger.Warn().Msgf("peer %d aborted: %s", peer, f.Reason)
			n.cfg.OnPeerFailure(fmt.Errorf("peer %d aborted: %s", peer, f.Reason))
		case KindData, KindFrontier:
			msg, err := f.message()
			if err != nil {
				n.logger.Error().Err(err).Msgf("undecodable message from peer %d", peer)
				n.cfg.OnPeerFailure(err)
				return
			}
			mb := n.Mailbox(msg.To)
			if mb == nil {
				n.cfg.OnPeerFailure(fmt.Errorf("%w: %d", ErrUnknownWorker, msg.To))
				return
			}
			mb.Put(msg)
		}
	}
}

// Workers returns the total number of workers across all processes.
func (n *Network) Workers() int { return len(n.cfg.Addresses) * n.cfg.Threads }

// Mailbox returns the inbox of a worker hosted in this process, or nil.
func (n *Network) Mailbox(worker int) *Mailbox {
	local := worker - n.cfg.Process*n.cfg.Threads
	if local < 0 || local >= len(n.mailboxes) {
		return nil
	}
	return n.mailboxes[local]
}

// Send delivers msg locally or queues it for the owning process.
func (n *Network) Send(msg Message) error {
	if msg.To < 0 || msg.To >= n.Workers() {
		return fmt.Errorf("%w: %d", ErrUnknownWorker, msg.To)
	}
	process := msg.To / n.cfg.Threads
	if process == n.cfg.Process {
		n.mailboxes[msg.To-process*n.cfg.Threads].Put(msg)
		return nil
	}
	if n.closing.Load() {
		return ErrClosed
	}
	f, err := toFrame(msg)
	if err != nil {
		return err
	}
	n.outbound[process].enqueue(f)
	return nil
}

// Abort tells every peer to stop. Only the first call sends anything.
func (n *Network) Abort(reason error) {
	n.abortOnce.Do(func() {
		msg := "aborted"
		if reason != nil {
			msg = reason.Error()
		}
		for _, w := range n.outbound {
			if w != nil {
				w.enqueue(frame{Kind: KindAbort, From: n.cfg.Process, Reason: msg})
			}
		}
	})
}

// Close says goodbye to every peer, flushes pending frames and releases
// the connections.
func (n *Network) Close() error {
	n.closeOnce.Do(func() {
		n.closing.Store(true)
		for _, w := range n.outbound {
			if w != nil {
				w.enqueue(frame{Kind: kindGoodbye, From: n.cfg.Process})
				w.finish()
			}
		}
		deadline := time.After(closeTimeout)
		for _, w := range n.outbound {
			if w == nil {
				continue
			}
			select {
			case <-w.done:
			case <-deadline:
				n.logger.Warn().Msgf("timed out flushing to peer %d", w.peer)
			}
		}
		n.teardown()
	})
	return nil
}

func (n *Network) teardown() {
	n.closing.Store(true)
	if n.listener != nil {
		n.listener.Close()
	}
	for _, w := range n.outbound {
		if w != nil {
			w.finish()
			w.conn.Close()
		}
	}
	for _, c := range n.inbound {
		if c != nil {
			c.Close()
		}
	}
	n.readers.Wait()
}

// peerWriter owns the outgoing connection to one peer. Frames are queued
// without bound and written in order by a single goroutine.
type peerWriter struct {
	peer int
	conn net.Conn
	net  *Network

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []frame
	finished bool
	done     chan struct{}
}

func newPeerWriter(conn net.Conn, peer int, n *Network) *peerWriter {
	w := &peerWriter{peer: peer, conn: conn, net: n, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *peerWriter) enqueue(f frame) {
	w.mu.Lock()
	if !w.finished {
		w.queue = append(w.queue, f)
		w.cond.Signal()
	}
	w.mu.Unlock()
}

// finish stops the writer once the queue is flushed.
func (w *peerWriter) finish() {
	w.mu.Lock()
	w.finished = true
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *peerWriter) run() {
	defer close(w.done)
	bw := bufio.NewWriter(w.conn)
	enc := codec.NewEncoder(bw, utils.MsgpackHandle())
	var batch []frame
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.finished {
			w.cond.Wait()
		}
		batch, w.queue = w.queue, batch[:0]
		finished := w.finished
		w.mu.Unlock()

		for _, f := range batch {
			if err := enc.Encode(f); err != nil {
				w.fail(err)
				return
			}
		}
		if err := bw.Flush(); err != nil {
			w.fail(err)
			return
		}
		if finished && len(batch) == 0 {
			return
		}
	}
}

func (w *peerWriter) fail(err error) {
	w.mu.Lock()
	w.finished = true
	w.queue = nil
	w.mu.Unlock()
	if w.net.closing.Load() {
		return
	}
	w.net.logger.Error().Err(err).Msgf("failed to write to peer %d", w.peer)
	w.net.cfg.OnPeerFailure(err)
}

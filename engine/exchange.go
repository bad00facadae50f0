package engine

import (
	"errors"
	"fmt"

	"github.com/tarungka/wireflow/internal/communication"
	"github.com/tarungka/wireflow/internal/metrics"
	"github.com/tarungka/wireflow/internal/partitioner"
	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// ErrNilValue is returned when a nil item or key reaches an exchange.
var ErrNilValue = errors.New("nil value")

// exchangeOp is the sending half of an exchange point. Every record goes
// to the worker picked by the partitioner; every frontier change goes to
// all workers, after the records it covers.
type exchangeOp struct {
	stage
	flow    int
	channel int
	worker  int
	keyed   bool

	part    *partitioner.Partitioner
	fabric  communication.Fabric
	metrics *metrics.Worker
	sent    progress.Frontier
}

func (o *exchangeOp) push(rec stream.Record) error {
	if rec.Value == nil {
		return o.fail(fmt.Errorf("%w: item at epoch %d", ErrNilValue, rec.Epoch))
	}
	key := rec.Value
	if o.keyed {
		k, _, err := value.SplitPair(rec.Value)
		if err != nil {
			return o.fail(err)
		}
		if k == nil {
			return o.fail(fmt.Errorf("%w: key at epoch %d", ErrNilValue, rec.Epoch))
		}
		key = k
	}
	o.metrics.IncrementExchanged()
	return o.fabric.Send(communication.Message{
		Kind:    communication.KindData,
		Flow:    o.flow,
		Channel: o.channel,
		From:    o.worker,
		To:      o.part.Route(key),
		Record:  rec,
	})
}

func (o *exchangeOp) advance(f progress.Frontier) error {
	if f == o.sent {
		return nil
	}
	if f.Less(o.sent) {
		return fmt.Errorf("%w: exchange %d went from %s to %s", progress.ErrRegression, o.channel, o.sent, f)
	}
	o.sent = f
	for to := 0; to < o.part.Peers(); to++ {
		err := o.fabric.Send(communication.Message{
			Kind:     communication.KindFrontier,
			Flow:     o.flow,
			Channel:  o.channel,
			From:     o.worker,
			To:       to,
			Frontier: f,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// inbox is the receiving half of an exchange point. It merges the
// frontiers of every sending worker before advancing downstream.
type inbox struct {
	merger *progress.Merger
	next   operator
}

func newInbox(peers int, next operator) *inbox {
	return &inbox{merger: progress.NewMerger(peers), next: next}
}

func (in *inbox) deliver(msg communication.Message) error {
	switch msg.Kind {
	case communication.KindData:
		return in.next.push(msg.Record)
	case communication.KindFrontier:
		merged, moved, err := in.merger.Update(msg.From, msg.Frontier)
		if err != nil || !moved {
			return err
		}
		return in.next.advance(merged)
	default:
		return fmt.Errorf("unexpected message %s", msg)
	}
}

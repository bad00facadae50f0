package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"golang.org/x/time/rate"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

const pollTimeout = 200 * time.Millisecond

// KafkaSource reads a topic from the beginning. Partition p is read by
// worker p mod n, so every record is ingested exactly once. Records are
// bucketed into epochs by timestamp, clamped so epochs never go back.
type KafkaSource struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	bootstrapServers []string
	topic            string
	epochLength      time.Duration
	idleTimeout      time.Duration
	rateLimit        float64
}

func (k *KafkaSource) Init(args SourceConfig) error {
	k.pipelineKey = args.Key
	k.pipelineName = args.Name
	k.pipelineConnectionType = args.ConnectionType

	if err := args.require("bootstrap_servers", "topic"); err != nil {
		log.Error().Err(err).Msg("error missing config values")
		return err
	}
	log.Debug().Str("bootstrap_servers", args.Config["bootstrap_servers"]).Str("topic", args.Config["topic"]).Send()

	k.bootstrapServers = strings.Split(args.Config["bootstrap_servers"], ",")
	k.topic = args.Config["topic"]

	var err error
	if k.epochLength, err = args.duration("epoch_length", time.Second); err != nil {
		return err
	}
	if k.epochLength <= 0 {
		return fmt.Errorf("epoch_length must be positive")
	}
	if k.idleTimeout, err = args.duration("idle_timeout", 10*time.Second); err != nil {
		return err
	}
	if k.rateLimit, err = args.float("rate_limit", 0); err != nil {
		return err
	}
	return nil
}

// Input looks up the partitions of the topic and hands each worker its
// share.
func (k *KafkaSource) Input(ctx context.Context) (stream.Input, error) {
	admin, err := kgo.NewClient(kgo.SeedBrokers(k.bootstrapServers...))
	if err != nil {
		log.Err(err).Msg("error when creating a kafka client")
		return nil, err
	}
	defer admin.Close()

	partitions, err := k.partitionCount(ctx, admin)
	if err != nil {
		return nil, err
	}
	log.Info().Str("topic", k.topic).Int("partitions", partitions).Msg("kafka source ready")

	return stream.Partitioned{Build: func(index, total int) (stream.Iterator, error) {
		owned := AssignPartitions(partitions, index, total)
		if len(owned) == 0 {
			return stream.FromRecords(), nil
		}
		offsets := make(map[int32]kgo.Offset, len(owned))
		for _, p := range owned {
			offsets[p] = kgo.NewOffset().AtStart()
		}
		client, err := kgo.NewClient(
			kgo.SeedBrokers(k.bootstrapServers...),
			kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{k.topic: offsets}),
		)
		if err != nil {
			return nil, err
		}
		return &kafkaIterator{
			ctx:         ctx,
			client:      client,
			epochLength: k.epochLength,
			idleTimeout: k.idleTimeout,
			limiter:     newLimiter(k.rateLimit),
		}, nil
	}}, nil
}

func (k *KafkaSource) partitionCount(ctx context.Context, client *kgo.Client) (int, error) {
	req := kmsg.NewPtrMetadataRequest()
	topic := kmsg.NewMetadataRequestTopic()
	topic.Topic = kmsg.StringPtr(k.topic)
	req.Topics = append(req.Topics, topic)

	resp, err := req.RequestWith(ctx, client)
	if err != nil {
		return 0, fmt.Errorf("kafka metadata: %w", err)
	}
	for _, t := range resp.Topics {
		if t.Topic == nil || *t.Topic != k.topic {
			continue
		}
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			return 0, fmt.Errorf("kafka topic %s: %w", k.topic, err)
		}
		return len(t.Partitions), nil
	}
	return 0, fmt.Errorf("kafka topic %s not found", k.topic)
}

func (k *KafkaSource) Name() string { return k.pipelineName }

func (k *KafkaSource) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", k.pipelineKey, k.pipelineName, k.pipelineConnectionType)
}

// AssignPartitions returns the partitions read by worker index of total.
func AssignPartitions(partitions, index, total int) []int32 {
	var owned []int32
	for p := index; p < partitions; p += total {
		owned = append(owned, int32(p))
	}
	return owned
}

// epochOf buckets a timestamp, never going below floor.
func epochOf(ts time.Time, length time.Duration, floor stream.Epoch) stream.Epoch {
	if ts.IsZero() || ts.UnixNano() < 0 {
		return floor
	}
	e := stream.Epoch(ts.UnixNano() / int64(length))
	if e < floor {
		return floor
	}
	return e
}

type kafkaIterator struct {
	ctx         context.Context
	client      *kgo.Client
	buffered    []*kgo.Record
	epoch       stream.Epoch
	epochLength time.Duration
	idleTimeout time.Duration
	limiter     *rate.Limiter
}

// Next blocks until a record arrives. The input ends after idleTimeout
// without records.
func (it *kafkaIterator) Next() (stream.Record, bool, error) {
	idleSince := time.Now()
	for len(it.buffered) == 0 {
		if err := it.ctx.Err(); err != nil {
			return stream.Record{}, false, nil
		}
		if it.idleTimeout > 0 && time.Since(idleSince) >= it.idleTimeout {
			log.Info().Msg("kafka source idle, closing input")
			return stream.Record{}, false, nil
		}

		pollCtx, cancel := context.WithTimeout(it.ctx, pollTimeout)
		fetches := it.client.PollFetches(pollCtx)
		cancel()
		if fetches.IsClientClosed() {
			return stream.Record{}, false, nil
		}
		var fetchErr error
		fetches.EachError(func(t string, p int32, err error) {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}
			log.Err(err).Msgf("fetch err topic %s partition %d", t, p)
			fetchErr = err
		})
		if fetchErr != nil {
			return stream.Record{}, false, fetchErr
		}
		fetches.EachRecord(func(r *kgo.Record) {
			it.buffered = append(it.buffered, r)
		})
	}

	if err := wait(it.ctx, it.limiter); err != nil {
		return stream.Record{}, false, err
	}
	r := it.buffered[0]
	it.buffered = it.buffered[1:]
	it.epoch = epochOf(r.Timestamp, it.epochLength, it.epoch)
	return stream.At(it.epoch, value.String(r.Value)), true, nil
}

func (it *kafkaIterator) Close() error {
	it.client.Close()
	return nil
}

package sinks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// KafkaSink produces every captured item to a topic, keyed by its epoch.
type KafkaSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string
	// Kafka Producer details
	bootstrapServers []string
	topic            string

	ctx                 context.Context
	kafkaProducerClient *kgo.Client
}

func (k *KafkaSink) Init(args SinkConfig) error {
	k.pipelineKey = args.Key
	k.pipelineName = args.Name
	k.pipelineConnectionType = args.ConnectionType

	if err := args.require("bootstrap_servers", "topic"); err != nil {
		log.Error().Msg("Error missing config values")
		return err
	}
	log.Debug().Str("bootstrap_servers", args.Config["bootstrap_servers"]).Str("topic", args.Config["topic"]).Send()

	k.bootstrapServers = strings.Split(args.Config["bootstrap_servers"], ",")
	k.topic = args.Config["topic"]
	return nil
}

func (k *KafkaSink) Connect(ctx context.Context) error {
	log.Trace().Msg("Connecting to kafka cluster as a sink...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.bootstrapServers...),
		kgo.DefaultProduceTopic(k.topic),
		kgo.AllowAutoTopicCreation(),
	}
	kafkaProducerClient, err := kgo.NewClient(opts...)
	if err != nil {
		log.Err(err).Msg("Error when creating a kafka producer!")
		return err
	}
	k.ctx = ctx
	k.kafkaProducerClient = kafkaProducerClient
	return nil
}

// Capture produces synchronously so a failed write fails the run.
func (k *KafkaSink) Capture(epoch stream.Epoch, v value.Value) error {
	record := kafkaRecord(epoch, v)
	if err := k.kafkaProducerClient.ProduceSync(k.ctx, record).FirstErr(); err != nil {
		log.Err(err).Msg("record had a produce error")
		return err
	}
	return nil
}

func kafkaRecord(epoch stream.Epoch, v value.Value) *kgo.Record {
	return &kgo.Record{
		Key:   strconv.AppendUint(nil, uint64(epoch), 10),
		Value: text(v),
	}
}

func (k *KafkaSink) Disconnect() error {
	log.Info().Msg("Disconnecting kafka sink")
	if k.kafkaProducerClient != nil {
		k.kafkaProducerClient.Close()
	}
	return nil
}

func (k *KafkaSink) Name() string { return k.pipelineName }

func (k *KafkaSink) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", k.pipelineKey, k.pipelineName, k.pipelineConnectionType)
}

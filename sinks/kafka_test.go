package sinks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tarungka/wireflow/value"
)

func TestKafkaSinkProducesCapturedItems(t *testing.T) {
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, "counts"))
	require.NoError(t, err)
	defer cluster.Close()
	brokers := strings.Join(cluster.ListenAddrs(), ",")

	s, err := New(context.Background(), SinkConfig{
		ConnectionType: "kafka",
		Config:         map[string]string{"bootstrap_servers": brokers, "topic": "counts"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Capture(4, value.Pair(value.String("cat"), value.Int(2))))
	require.NoError(t, s.Capture(5, value.String("dog")))
	require.NoError(t, s.Disconnect())

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cluster.ListenAddrs()...),
		kgo.ConsumeTopics("counts"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []string
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		consumer.PollFetches(ctx).EachRecord(func(r *kgo.Record) {
			got = append(got, string(r.Key)+"="+string(r.Value))
		})
		cancel()
	}
	assert.Equal(t, []string{`4=("cat", 2)`, "5=dog"}, got)
}

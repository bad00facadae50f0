package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

func TestFileSinkWritesEpochAndItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "captured.tsv")
	s, err := New(context.Background(), SinkConfig{
		Name:           "out",
		ConnectionType: "file",
		Config:         map[string]string{"file_path": path},
	})
	require.NoError(t, err)

	require.NoError(t, s.Capture(0, value.String("hello")))
	require.NoError(t, s.Capture(3, value.Pair(value.String("k"), value.Int(2))))
	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0\thello\n3\t(\"k\", 2)\n", string(got))
	assert.Equal(t, "out", s.Name())
	assert.Equal(t, "Key:|Name:out|Type:file", s.Info())
}

func TestFileSinkRequiresPath(t *testing.T) {
	_, err := New(context.Background(), SinkConfig{ConnectionType: "file"})
	assert.ErrorIs(t, err, ErrMissingConfig)

	_, err = New(context.Background(), SinkConfig{ConnectionType: "elastic"})
	assert.ErrorIs(t, err, ErrUnknownSink)
}

func TestBadgerSinkKeepsEpochOrder(t *testing.T) {
	s, err := New(context.Background(), SinkConfig{ConnectionType: "badger"})
	require.NoError(t, err)
	defer s.Disconnect()

	require.NoError(t, s.Capture(2, value.String("c")))
	require.NoError(t, s.Capture(0, value.String("a")))
	require.NoError(t, s.Capture(2, value.String("d")))
	require.NoError(t, s.Capture(1, value.Int(7)))

	var got []stream.Record
	err = s.(*BadgerSink).Range(func(epoch stream.Epoch, v value.Value) error {
		got = append(got, stream.At(epoch, v))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []stream.Record{
		stream.At(0, value.String("a")),
		stream.At(1, value.Int(7)),
		stream.At(2, value.String("c")),
		stream.At(2, value.String("d")),
	}, got)
}

func TestKafkaRecordLayout(t *testing.T) {
	r := kafkaRecord(42, value.String("word"))
	assert.Equal(t, "42", string(r.Key))
	assert.Equal(t, "word", string(r.Value))

	r = kafkaRecord(1, value.Pair(value.String("w"), value.Int(3)))
	assert.Equal(t, `("w", 3)`, string(r.Value))

	k := &KafkaSink{}
	assert.ErrorIs(t, k.Init(SinkConfig{ConnectionType: "kafka", Config: map[string]string{"topic": "t"}}), ErrMissingConfig)
	require.NoError(t, k.Init(SinkConfig{ConnectionType: "kafka", Config: map[string]string{
		"bootstrap_servers": "a:9092,b:9092",
		"topic":             "t",
	}}))
	assert.Equal(t, []string{"a:9092", "b:9092"}, k.bootstrapServers)
}

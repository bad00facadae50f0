package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/tarungka/wireflow/internal/db"
	"github.com/tarungka/wireflow/internal/utils"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// BadgerSink stores captured items keyed by epoch and arrival order, so a
// badger source can replay them. An empty path keeps the store in memory.
type BadgerSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	path string

	mu  sync.Mutex
	db  *badger.DB
	seq uint64
}

func (b *BadgerSink) Init(args SinkConfig) error {
	b.pipelineKey = args.Key
	b.pipelineName = args.Name
	b.pipelineConnectionType = args.ConnectionType
	b.path = args.Config["path"]
	return nil
}

func (b *BadgerSink) Connect(context.Context) error {
	store, err := db.Open(b.path, "badger-sink")
	if err != nil {
		log.Err(err).Str("path", b.path).Msg("Failed to open badger store")
		return err
	}
	b.db = store
	return nil
}

// itemKey orders items by epoch, then by arrival.
func itemKey(epoch stream.Epoch, seq uint64) []byte {
	key := make([]byte, 0, 16)
	key = append(key, utils.ConvertUint64ToBytes(uint64(epoch))...)
	return append(key, utils.ConvertUint64ToBytes(seq)...)
}

func (b *BadgerSink) Capture(epoch stream.Epoch, v value.Value) error {
	raw, err := value.Marshal(v)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return fmt.Errorf("badger sink is not connected")
	}
	key := itemKey(epoch, b.seq)
	b.seq++
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

// Range calls fn for every stored item in epoch order.
func (b *BadgerSink) Range(fn func(epoch stream.Epoch, v value.Value) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			v, err := value.Unmarshal(raw)
			if err != nil {
				return err
			}
			if err := fn(stream.Epoch(utils.ConvertBytesToUint64(item.Key()[:8])), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerSink) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	log.Info().Str("path", b.path).Msg("Closing badger sink")
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *BadgerSink) Name() string { return b.pipelineName }

func (b *BadgerSink) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", b.pipelineKey, b.pipelineName, b.pipelineConnectionType)
}

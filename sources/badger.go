package sources

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/tarungka/wireflow/internal/db"
	"github.com/tarungka/wireflow/internal/utils"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// BadgerSource replays items captured by the badger sink, in epoch order.
// It is a singleton input: worker 0 reads the store and the items are
// scattered from there.
type BadgerSource struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	path string
}

func (b *BadgerSource) Init(args SourceConfig) error {
	b.pipelineKey = args.Key
	b.pipelineName = args.Name
	b.pipelineConnectionType = args.ConnectionType

	if err := args.require("path"); err != nil {
		log.Error().Err(err).Msg("missing path in config")
		return err
	}
	b.path = args.Config["path"]
	return nil
}

// Input checks the store exists. The store is opened on the first read, so
// only the worker that pumps the input holds badger's directory lock.
func (b *BadgerSource) Input(context.Context) (stream.Input, error) {
	if !utils.PathExists(b.path) {
		return nil, fmt.Errorf("badger source: %s does not exist", b.path)
	}
	return stream.Singleton{Source: &badgerIterator{path: b.path}}, nil
}

func (b *BadgerSource) Name() string { return b.pipelineName }

func (b *BadgerSource) Info() string {
	return fmt.Sprintf("Key:%s|Name:%s|Type:%s", b.pipelineKey, b.pipelineName, b.pipelineConnectionType)
}

type badgerIterator struct {
	path string

	db  *badger.DB
	txn *badger.Txn
	it  *badger.Iterator
}

func (b *badgerIterator) open() error {
	store, err := db.Open(b.path, "badger-source")
	if err != nil {
		return fmt.Errorf("badger source: %w", err)
	}
	b.db = store
	b.txn = store.NewTransaction(false)
	b.it = b.txn.NewIterator(badger.DefaultIteratorOptions)
	b.it.Rewind()
	return nil
}

func (b *badgerIterator) Next() (stream.Record, bool, error) {
	if b.db == nil {
		if err := b.open(); err != nil {
			return stream.Record{}, false, err
		}
	}
	if !b.it.Valid() {
		return stream.Record{}, false, nil
	}
	item := b.it.Item()
	key := item.Key()
	if len(key) < 8 {
		return stream.Record{}, false, fmt.Errorf("badger source: malformed key %x", key)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return stream.Record{}, false, err
	}
	v, err := value.Unmarshal(raw)
	if err != nil {
		return stream.Record{}, false, err
	}
	b.it.Next()
	return stream.At(stream.Epoch(utils.ConvertBytesToUint64(key[:8])), v), true, nil
}

// Close releases the store if it was opened.
func (b *badgerIterator) Close() error {
	if b.db == nil {
		return nil
	}
	b.it.Close()
	b.txn.Discard()
	err := b.db.Close()
	b.db, b.txn, b.it = nil, nil, nil
	return err
}

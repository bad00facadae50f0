// Package db opens the badger stores used by the badger source and sink.
package db

import (
	"expvar"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/tarungka/wireflow/internal/logger"
)

const (
	numOpened         = "opened"
	numOpenedInMemory = "opened_in_memory"
	numOpenFailures   = "open_failures"
)

// stats captures stats for the DB layer.
var stats *expvar.Map

func init() {
	stats = expvar.NewMap("db")
	ResetStats()
}

// ResetStats resets the expvar stats for this module. Mostly for test purposes.
func ResetStats() {
	stats.Init()
	stats.Add(numOpened, 0)
	stats.Add(numOpenedInMemory, 0)
	stats.Add(numOpenFailures, 0)
}

// Open opens the database at path, logging through component. An empty path
// opens an in-memory database.
func Open(path, component string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(logger.NewLeveledLogger(component))
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		stats.Add(numOpenFailures, 1)
		return nil, err
	}
	if path == "" {
		stats.Add(numOpenedInMemory, 1)
		log.Debug().Str("component", component).Msg("opened an in-memory database")
	} else {
		stats.Add(numOpened, 1)
		log.Debug().Str("component", component).Msgf("opened a file-based database at %s", path)
	}
	return db, nil
}

// Package sources builds dataflow inputs from configuration.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tarungka/wireflow/stream"
)

var (
	// ErrUnknownSource is returned for an unregistered source type.
	ErrUnknownSource = errors.New("unknown source type")

	// ErrMissingConfig is returned when a required setting is absent.
	ErrMissingConfig = errors.New("missing source config")
)

// Source turns external data into a dataflow input.
type Source interface {
	Init(args SourceConfig) error
	// Input returns the input to build a dataflow from. ctx bounds any
	// blocking reads the input makes while the dataflow runs.
	Input(ctx context.Context) (stream.Input, error)
	Name() string
	Info() string
}

// SourceCreator returns an uninitialized source.
type SourceCreator func() Source

// SourceFactory creates sources based on configuration
type SourceFactory struct {
	mu       sync.RWMutex
	creators map[string]SourceCreator
}

var defaultFactory = &SourceFactory{
	creators: make(map[string]SourceCreator),
}

func init() {
	RegisterSource("file", func() Source { return &FileSource{} })
	RegisterSource("kafka", func() Source { return &KafkaSource{} })
	RegisterSource("badger", func() Source { return &BadgerSource{} })
}

// RegisterSource registers a new source type with the default factory. A
// later registration under the same name wins.
func RegisterSource(name string, creator SourceCreator) {
	defaultFactory.mu.Lock()
	defer defaultFactory.mu.Unlock()
	defaultFactory.creators[name] = creator
}

// Types lists the registered source types.
func Types() []string {
	defaultFactory.mu.RLock()
	defer defaultFactory.mu.RUnlock()
	names := make([]string, 0, len(defaultFactory.creators))
	for name := range defaultFactory.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateSource creates and initializes a source of args.ConnectionType.
func CreateSource(args SourceConfig) (Source, error) {
	defaultFactory.mu.RLock()
	creator, exists := defaultFactory.creators[args.ConnectionType]
	defaultFactory.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, args.ConnectionType)
	}
	src := creator()
	if err := src.Init(args); err != nil {
		return nil, err
	}
	return src, nil
}

// NewInput builds the dataflow input described by args.
func NewInput(ctx context.Context, args SourceConfig) (stream.Input, error) {
	src, err := CreateSource(args)
	if err != nil {
		return nil, err
	}
	return src.Input(ctx)
}

// newLimiter returns a limiter allowing perSecond records a second, or nil
// for no limit.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

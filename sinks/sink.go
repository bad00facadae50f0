// Package sinks receives the items of a Capture step.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

var (
	// ErrUnknownSink is returned for an unregistered sink type.
	ErrUnknownSink = errors.New("unknown sink type")

	// ErrMissingConfig is returned when a required setting is absent.
	ErrMissingConfig = errors.New("missing sink config")
)

// Sink stores captured items. Capture may be passed directly to
// Dataflow.Capture.
type Sink interface {
	Init(args SinkConfig) error
	Connect(ctx context.Context) error
	Capture(epoch stream.Epoch, v value.Value) error
	Disconnect() error
	Name() string
	Info() string
}

// SinkCreator returns an uninitialized sink.
type SinkCreator func() Sink

var (
	mu       sync.RWMutex
	creators = map[string]SinkCreator{
		"file":   func() Sink { return &FileSink{} },
		"kafka":  func() Sink { return &KafkaSink{} },
		"badger": func() Sink { return &BadgerSink{} },
	}
)

// RegisterSink registers a sink type.
func RegisterSink(name string, creator SinkCreator) {
	mu.Lock()
	defer mu.Unlock()
	creators[name] = creator
}

// New creates, initializes and connects a sink of args.ConnectionType.
func New(ctx context.Context, args SinkConfig) (Sink, error) {
	mu.RLock()
	creator, ok := creators[args.ConnectionType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, args.ConnectionType)
	}

	s := creator()
	if err := s.Init(args); err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// text renders an item for line and message oriented sinks: strings and
// bytes are written raw, everything else in its debug form.
func text(v value.Value) []byte {
	switch t := v.(type) {
	case value.String:
		return []byte(t)
	case value.Bytes:
		return []byte(t)
	default:
		return []byte(v.String())
	}
}

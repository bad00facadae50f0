package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tarungka/wireflow/engine"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

func main() {
	// One global source, scattered across the workers.
	input := stream.Singleton{Source: stream.FromRecords(
		stream.At(0, value.String("hello")),
		stream.At(0, value.String("world")),
		stream.At(1, value.String("wire")),
		stream.At(2, value.String("flow")),
	)}

	flow, err := stream.New(input)
	if err != nil {
		panic(err)
	}

	// Upper-case every word.
	if err := flow.Map(func(v value.Value) (value.Value, error) {
		return value.String(strings.ToUpper(string(v.(value.String)))), nil
	}); err != nil {
		panic(err)
	}

	// Print each word with its epoch.
	if err := flow.InspectEpoch(func(epoch stream.Epoch, v value.Value) error {
		fmt.Printf("epoch %d saw %s\n", epoch, v)
		return nil
	}); err != nil {
		panic(err)
	}

	if err := flow.Capture(func(epoch stream.Epoch, v value.Value) error {
		fmt.Printf("captured %d %s\n", epoch, v)
		return nil
	}); err != nil {
		panic(err)
	}

	cfg := engine.DefaultConfig()
	cfg.Threads = 2
	if err := engine.BuildAndRun(context.Background(), cfg, flow); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

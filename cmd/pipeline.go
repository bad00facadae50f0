package main

import (
	"fmt"
	"strings"

	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

// wordCount counts the words of every epoch across all workers and hands
// (word, count) pairs to capture.
func wordCount(input stream.Input, capture stream.CaptureFunc) (*stream.Dataflow, error) {
	flow, err := stream.New(input)
	if err != nil {
		return nil, err
	}
	if err := flow.FlatMap(splitWords); err != nil {
		return nil, err
	}
	if err := flow.Map(func(v value.Value) (value.Value, error) {
		return value.Pair(v, value.Int(1)), nil
	}); err != nil {
		return nil, err
	}
	if err := flow.ReduceEpoch(sumCounts); err != nil {
		return nil, err
	}
	if err := flow.Capture(capture); err != nil {
		return nil, err
	}
	return flow, nil
}

func splitWords(v value.Value) ([]value.Value, error) {
	var line string
	switch t := v.(type) {
	case value.String:
		line = string(t)
	case value.Bytes:
		line = string(t)
	default:
		return nil, fmt.Errorf("word count expects text, got %s", v)
	}
	fields := strings.Fields(line)
	words := make([]value.Value, len(fields))
	for i, w := range fields {
		words[i] = value.String(strings.ToLower(w))
	}
	return words, nil
}

func sumCounts(agg, v value.Value) (value.Value, error) {
	n, ok := v.(value.Int)
	if !ok {
		return nil, fmt.Errorf("count must be an int, got %s", v)
	}
	total, ok := agg.(value.Int)
	if !ok {
		return nil, fmt.Errorf("aggregate must be an int, got %s", agg)
	}
	return total + n, nil
}

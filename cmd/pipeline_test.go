package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/engine"
	"github.com/tarungka/wireflow/internal/config"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

func TestWordCountPerEpoch(t *testing.T) {
	input := stream.Singleton{Source: stream.FromRecords(
		stream.At(0, value.String("the cat")),
		stream.At(0, value.String("The dog")),
		stream.At(1, value.String("cat")),
		stream.At(1, value.Bytes("cat cat")),
	)}

	var mu sync.Mutex
	got := map[string]int64{}
	flow, err := wordCount(input, func(epoch stream.Epoch, v value.Value) error {
		k, n, err := value.SplitPair(v)
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		got[fmt.Sprintf("%s@%d", string(k.(value.String)), epoch)] += int64(n.(value.Int))
		return nil
	})
	require.NoError(t, err)

	cfg := engine.DefaultConfig()
	cfg.Threads = 3
	require.NoError(t, engine.BuildAndRun(context.Background(), cfg, flow))

	assert.Equal(t, map[string]int64{
		"the@0": 2,
		"cat@0": 1,
		"dog@0": 1,
		"cat@1": 3,
	}, got)
}

func TestSplitWordsRejectsNonText(t *testing.T) {
	_, err := splitWords(value.Int(3))
	assert.Error(t, err)

	words, err := splitWords(value.String("  A  b "))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.String("a"), value.String("b")}, words)
}

func TestRunWritesSink(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.tsv")
	require.NoError(t, os.WriteFile(in, []byte("a b\na\nb c\n"), 0644))

	settings, err := config.Load([]string{"--input", in, "--output", out, "--threads", "2"})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), settings))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	sort.Strings(lines)
	assert.Equal(t, []string{
		"0\t(\"a\", 1)",
		"0\t(\"b\", 1)",
		"1\t(\"a\", 1)",
		"2\t(\"b\", 1)",
		"2\t(\"c\", 1)",
	}, lines)
}

func TestRunNeedsSource(t *testing.T) {
	assert.Error(t, run(context.Background(), config.Settings{Engine: engine.DefaultConfig()}))
}

func TestLineCaptureFlushesWhileCapturing(t *testing.T) {
	var buf bytes.Buffer
	out := newLineCapture(&buf)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.NoError(t, out.capture(stream.Epoch(i%3), value.Int(int64(i))))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, out.flush())
		}
	}()
	wg.Wait()
	require.NoError(t, out.flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 100)
	assert.Equal(t, "0\t0", lines[0])
	assert.Equal(t, "1\t1", lines[1])
}

package communication

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/internal/progress"
	"github.com/tarungka/wireflow/stream"
	"github.com/tarungka/wireflow/value"
)

func freeAddrs(t *testing.T, n int) []string {
	t.Helper()
	addrs := make([]string, n)
	for i := range addrs {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs[i] = ln.Addr().String()
		require.NoError(t, ln.Close())
	}
	return addrs
}

func TestLocalDeliversInOrder(t *testing.T) {
	l := NewLocal(2)
	assert.Equal(t, 2, l.Workers())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Send(Message{Kind: KindData, From: 0, To: 1, Record: stream.At(0, value.Int(int64(i)))}))
	}
	require.NoError(t, l.Send(Message{Kind: KindFrontier, From: 0, To: 1, Frontier: progress.Closed}))

	got := l.Mailbox(1).Drain(nil)
	require.Len(t, got, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, value.Int(int64(i)), got[i].Record.Value)
	}
	assert.True(t, got[5].Frontier.IsClosed())
	assert.Equal(t, 0, l.Mailbox(1).Len())

	assert.ErrorIs(t, l.Send(Message{To: 7}), ErrUnknownWorker)
	assert.Nil(t, l.Mailbox(-1))
}

func TestMailboxConcurrentSenders(t *testing.T) {
	mb := &Mailbox{}
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				mb.Put(Message{Kind: KindData, From: s, Record: stream.At(stream.Epoch(i), value.None{})})
			}
		}()
	}
	wg.Wait()

	got := mb.Drain(nil)
	require.Len(t, got, 400)
	last := map[int]stream.Epoch{}
	for _, m := range got {
		if prev, ok := last[m.From]; ok {
			assert.Greater(t, m.Record.Epoch, prev, "per-sender order")
		}
		last[m.From] = m.Record.Epoch
	}
}

func startMesh(t *testing.T, threads int, failures []*atomic.Int32) []*Network {
	t.Helper()
	addrs := freeAddrs(t, len(failures))
	nets := make([]*Network, len(addrs))
	errs := make([]error, len(addrs))
	var wg sync.WaitGroup
	for p := range addrs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nets[p], errs[p] = NewNetwork(context.Background(), NetworkConfig{
				Addresses:     addrs,
				Process:       p,
				Threads:       threads,
				DialAttempts:  50,
				DialInterval:  20 * time.Millisecond,
				OnPeerFailure: func(error) { failures[p].Add(1) },
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return nets
}

func TestNetworkExchangesAcrossProcesses(t *testing.T) {
	failures := []*atomic.Int32{{}, {}}
	nets := startMesh(t, 2, failures)
	assert.Equal(t, 4, nets[0].Workers())

	// Worker 1 lives in process 0, worker 3 in process 1.
	for i := 0; i < 10; i++ {
		require.NoError(t, nets[0].Send(Message{
			Kind: KindData, Flow: 0, Channel: 1, From: 1, To: 3,
			Record: stream.At(stream.Epoch(i), value.Pair(value.String("k"), value.Int(int64(i)))),
		}))
	}
	require.NoError(t, nets[0].Send(Message{Kind: KindFrontier, Channel: 1, From: 1, To: 3, Frontier: progress.Closed}))
	// Local delivery skips the wire.
	require.NoError(t, nets[1].Send(Message{Kind: KindFrontier, From: 3, To: 2, Frontier: progress.At(4)}))

	var got []Message
	require.Eventually(t, func() bool {
		got = nets[1].Mailbox(3).Drain(got)
		return len(got) == 11
	}, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 10; i++ {
		assert.Equal(t, KindData, got[i].Kind)
		assert.Equal(t, stream.Epoch(i), got[i].Record.Epoch)
		assert.True(t, value.Pair(value.String("k"), value.Int(int64(i))).Equal(got[i].Record.Value))
		assert.Equal(t, 1, got[i].Channel)
	}
	assert.True(t, got[10].Frontier.IsClosed())

	local := nets[1].Mailbox(2).Drain(nil)
	require.Len(t, local, 1)
	assert.Equal(t, progress.At(4), local[0].Frontier)
	assert.Nil(t, nets[1].Mailbox(0))

	require.NoError(t, nets[0].Close())
	require.NoError(t, nets[1].Close())
	assert.Zero(t, failures[0].Load())
	assert.Zero(t, failures[1].Load())
	assert.ErrorIs(t, nets[0].Send(Message{Kind: KindFrontier, To: 3}), ErrClosed)
}

func TestNetworkAbortReachesPeers(t *testing.T) {
	failures := []*atomic.Int32{{}, {}, {}}
	nets := startMesh(t, 1, failures)

	nets[2].Abort(assert.AnError)
	nets[2].Abort(assert.AnError)
	require.Eventually(t, func() bool {
		return failures[0].Load() >= 1 && failures[1].Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	for _, n := range nets {
		require.NoError(t, n.Close())
	}
}

func TestNetworkSetupFailsWithoutPeers(t *testing.T) {
	addrs := freeAddrs(t, 2)
	_, err := NewNetwork(context.Background(), NetworkConfig{
		Addresses:    addrs,
		Process:      0,
		Threads:      1,
		DialAttempts: 2,
		DialInterval: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrFabricSetup)

	_, err = NewNetwork(context.Background(), NetworkConfig{Addresses: addrs, Process: 5, Threads: 1})
	assert.ErrorIs(t, err, ErrFabricSetup)
}

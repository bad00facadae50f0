package engine

import (
	"sync"
	"time"
)

// exclusive is held by HoldFor and Exclusive. It stands in for shared state
// that user callbacks may contend on.
var exclusive sync.Mutex

// HoldFor sleeps for d while holding the process-wide exclusive lock, so
// every Exclusive call stalls meanwhile.
func HoldFor(d time.Duration) {
	exclusive.Lock()
	defer exclusive.Unlock()
	time.Sleep(d)
}

// ReleaseFor sleeps for d without holding anything.
func ReleaseFor(d time.Duration) {
	time.Sleep(d)
}

// Exclusive runs fn under the process-wide exclusive lock.
func Exclusive(fn func()) {
	exclusive.Lock()
	defer exclusive.Unlock()
	fn()
}

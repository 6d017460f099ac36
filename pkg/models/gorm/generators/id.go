package generators

import (
	"sync"
	"time"
)

// ID hands out time-ordered uint64 identifiers: unix milliseconds in the high
// bits, a per-process sequence in the low 20. Rows created in the same
// millisecond still sort in insertion order.
var (
	idMu      sync.Mutex
	idLastMs  int64
	idCounter uint64
)

func ID() uint64 {
	idMu.Lock()
	defer idMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms == idLastMs {
		idCounter++
	} else {
		idLastMs = ms
		idCounter = 0
	}
	return uint64(ms)<<20 | (idCounter & 0xFFFFF)
}

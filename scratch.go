package wire

import (
	"sync"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// Scratch is a pair of reusable byte stores for staging transient
// encodings. Two stores, not one, so an operation that re-encodes its own
// output (encode then hex-encode, say) never reads and writes the same
// buffer.
type Scratch struct {
	Primary   *bytestore.Buffer
	Secondary *bytestore.Buffer
}

// scratchSize matches the common encoded-value size; larger values grow the
// stores and the grown stores stay pooled.
const scratchSize = 4096

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{
			Primary:   bytestore.NewSize(scratchSize),
			Secondary: bytestore.NewSize(scratchSize),
		}
	},
}

var debugBypassOnce sync.Once

// AcquireScratch returns a cleared Scratch for exclusive use by the calling
// goroutine until ReleaseScratch. Under WIRE_DEBUG the pool is bypassed and
// every call allocates fresh stores, so overlapping diagnostic traces never
// share a buffer.
func AcquireScratch() *Scratch {
	if debugMode {
		debugBypassOnce.Do(func() {
			logger.Info().Str("env", EnvDebug).Msg("scratch cache bypassed, allocating per call")
		})
		return &Scratch{
			Primary:   bytestore.NewSize(scratchSize),
			Secondary: bytestore.NewSize(scratchSize),
		}
	}
	s := scratchPool.Get().(*Scratch)
	s.Primary.Clear()
	s.Secondary.Clear()
	return s
}

// ReleaseScratch returns s to the pool. s must not be used afterwards.
func ReleaseScratch(s *Scratch) {
	if s == nil || debugMode {
		return
	}
	scratchPool.Put(s)
}

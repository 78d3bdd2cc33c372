/*
Package logsampler caps repeated diagnostics.

A single corrupt message module can produce thousands of identical "bad entry"
warnings. A sampler lets the first few occurrences of each diagnostic through
and counts the rest, the suppressed totals are handed to a SummaryReporter when
the caller flushes (usually once the module has been decoded).
*/
package logsampler

import (
	"sync"
	"sync/atomic"
)

// SummaryReporter receives the number of suppressed occurrences per key. This
// keeps the sampler decoupled from any specific logging library.
type SummaryReporter interface {
	LogSummary(key string, suppressedCount int64)
}

// Sampler decides whether a diagnostic should be written.
type Sampler interface {
	// ShouldLog reports whether this occurrence of key should be logged.
	// The key is a stable identifier for the log site and its subject.
	ShouldLog(key string) bool
	// Flush reports and forgets every suppressed count.
	Flush()
}

// BurstSampler lets the first Burst occurrences of every key through and
// suppresses the rest until the next Flush.
type BurstSampler struct {
	burst    int64
	counts   sync.Map // string -> *atomic.Int64
	reporter SummaryReporter
}

// NewBurstSampler creates a sampler allowing burst logs per key. A burst lower
// than 1 is treated as 1. reporter may be nil when summaries are not wanted.
func NewBurstSampler(burst int, reporter SummaryReporter) *BurstSampler {
	if burst < 1 {
		burst = 1
	}
	return &BurstSampler{
		burst:    int64(burst),
		reporter: reporter,
	}
}

func (s *BurstSampler) ShouldLog(key string) bool {
	val, ok := s.counts.Load(key)
	if !ok {
		val, _ = s.counts.LoadOrStore(key, new(atomic.Int64))
	}
	return val.(*atomic.Int64).Add(1) <= s.burst
}

// Suppressed returns how many occurrences of key were dropped since the last
// Flush.
func (s *BurstSampler) Suppressed(key string) int64 {
	val, ok := s.counts.Load(key)
	if !ok {
		return 0
	}
	return max(val.(*atomic.Int64).Load()-s.burst, 0)
}

func (s *BurstSampler) Flush() {
	s.counts.Range(func(key, value any) bool {
		count := value.(*atomic.Int64).Swap(0)
		if suppressed := count - s.burst; suppressed > 0 && s.reporter != nil {
			s.reporter.LogSummary(key.(string), suppressed)
		}
		s.counts.Delete(key)
		return true
	})
}

// Always is a Sampler that never suppresses anything.
type Always struct{}

func (Always) ShouldLog(string) bool { return true }
func (Always) Flush()                {}

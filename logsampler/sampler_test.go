package logsampler_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/0xrawsec/toast"

	sampler "github.com/tekert/golang-msgtable/logsampler"
)

type recordingReporter struct {
	mu      sync.Mutex
	summary map[string]int64
}

func (r *recordingReporter) LogSummary(key string, suppressed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		r.summary = make(map[string]int64)
	}
	r.summary[key] += suppressed
}

func TestBurstSampler(t *testing.T) {
	t.Run("LogsBurstThenSuppresses", func(t *testing.T) {
		tt := toast.FromT(t)
		s := sampler.NewBurstSampler(2, nil)

		tt.Assert(s.ShouldLog("netmsg.dll/short"))
		tt.Assert(s.ShouldLog("netmsg.dll/short"))
		tt.Assert(!s.ShouldLog("netmsg.dll/short"))
		tt.Assert(s.Suppressed("netmsg.dll/short") == 1)

		// keys are independent
		tt.Assert(s.ShouldLog("netmsg.dll/flags"))
		tt.Assert(s.Suppressed("netmsg.dll/flags") == 0)
	})

	t.Run("FlushReportsAndResets", func(t *testing.T) {
		tt := toast.FromT(t)
		r := &recordingReporter{}
		s := sampler.NewBurstSampler(1, r)

		for range 6 {
			s.ShouldLog("a")
		}
		s.ShouldLog("b")
		s.Flush()

		tt.Assert(r.summary["a"] == 5, "expected 5 suppressed, got %d", r.summary["a"])
		_, reported := r.summary["b"]
		tt.Assert(!reported, "key within its burst must not be reported")

		// after a flush the burst is available again
		tt.Assert(s.ShouldLog("a"))
	})

	t.Run("ZeroBurstStillLogsFirst", func(t *testing.T) {
		tt := toast.FromT(t)
		s := sampler.NewBurstSampler(0, nil)
		tt.Assert(s.ShouldLog("k"))
		tt.Assert(!s.ShouldLog("k"))
	})

	t.Run("Concurrent", func(t *testing.T) {
		tt := toast.FromT(t)
		s := sampler.NewBurstSampler(10, nil)
		var wg sync.WaitGroup
		var mu sync.Mutex
		logged := 0
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					if s.ShouldLog("shared") {
						mu.Lock()
						logged++
						mu.Unlock()
					}
					s.ShouldLog(fmt.Sprintf("own-%d-%d", i, j%3))
				}
			}()
		}
		wg.Wait()
		tt.Assert(logged == 10, "expected exactly 10 logs, got %d", logged)
		tt.Assert(s.Suppressed("shared") == 790)
	})
}

func TestAlways(t *testing.T) {
	tt := toast.FromT(t)
	var s sampler.Sampler = sampler.Always{}
	for range 100 {
		tt.Assert(s.ShouldLog("k"))
	}
	s.Flush()
}

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	mc := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.IncrementCounter("letters_signed", "")
			mc.IncrementCounter("workflow_rejected", "PRECONDITION_FAILED")
		}()
	}
	wg.Wait()

	counters := mc.GetCounters()
	assert.Equal(t, int64(50), counters["letters_signed"]["default"])
	assert.Equal(t, int64(50), counters["workflow_rejected"]["PRECONDITION_FAILED"])

	// returned maps are copies
	counters["letters_signed"]["default"] = 0
	assert.Equal(t, int64(50), mc.GetCounters()["letters_signed"]["default"])
}

func TestLatencies_KeepsRecentSamples(t *testing.T) {
	mc := NewMetricsCollector()
	for i := 1; i <= 150; i++ {
		mc.ObserveLatency("sign", time.Duration(i)*time.Millisecond)
	}

	s := mc.GetLatencies()["sign"]
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, 150*time.Millisecond, s.Max)
	assert.Equal(t, 100*time.Millisecond, s.P50)
}

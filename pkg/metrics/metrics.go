package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 100

// MetricsCollector 进程内计数器和延迟采样, 通过 /metrics 输出
type MetricsCollector struct {
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	mutex     sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// IncrementCounter adds one to name under the given label value.
// An empty label is recorded as "default".
func (mc *MetricsCollector) IncrementCounter(name, label string) {
	if label == "" {
		label = "default"
	}
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][label]++
}

// ObserveLatency keeps the most recent samples per name.
func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	samples := append(mc.latencies[name], duration)
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	mc.latencies[name] = samples
}

func (mc *MetricsCollector) GetCounters() map[string]map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	out := make(map[string]map[string]int64, len(mc.counters))
	for name, labels := range mc.counters {
		cp := make(map[string]int64, len(labels))
		for k, v := range labels {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

// LatencySummary p50/p95/max over the retained samples.
type LatencySummary struct {
	Count int           `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

func (mc *MetricsCollector) GetLatencies() map[string]LatencySummary {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	out := make(map[string]LatencySummary, len(mc.latencies))
	for name, samples := range mc.latencies {
		if len(samples) == 0 {
			continue
		}
		sorted := append([]time.Duration(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out[name] = LatencySummary{
			Count: len(sorted),
			P50:   sorted[(len(sorted)-1)*50/100],
			P95:   sorted[(len(sorted)-1)*95/100],
			Max:   sorted[len(sorted)-1],
		}
	}
	return out
}

// Package metrics records latencies and counters for the
// contract compiler and publishes them through expvar.
// Defined metrics:
//   latency.<func> (histogram, nanoseconds) recorded by RecordElapsed
//   counts.<name> (counter) incremented by Count
package metrics

import (
	"expvar"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
)

const (
	minLatency = int64(time.Microsecond)
	maxLatency = int64(10 * time.Second)
	sigfigs    = 2
)

var (
	mu         sync.Mutex // protects histograms
	histograms = make(map[string]*hdrhistogram.Histogram)
)

var (
	latency = expvar.NewMap("latency")
	counts  = expvar.NewMap("counts")
)

// RecordElapsed records the time since start in the histogram
// for the calling function. Use it inside a defer:
//
//	defer metrics.RecordElapsed(time.Now())
func RecordElapsed(start time.Time) {
	d := time.Since(start)
	name := callerName()

	mu.Lock()
	h, ok := histograms[name]
	if !ok {
		h = hdrhistogram.New(minLatency, maxLatency, sigfigs)
		histograms[name] = h
		latency.Set(name, expvar.Func(func() interface{} { return snapshot(name) }))
	}
	v := int64(d)
	if v < minLatency {
		v = minLatency
	} else if v > maxLatency {
		v = maxLatency
	}
	h.RecordValue(v) // cannot fail; v is clamped to the trackable range
	mu.Unlock()
}

// Count increments the named counter.
func Count(name string) {
	counts.Add(name, 1)
}

// Counter returns the current value of the named counter.
func Counter(name string) int64 {
	v, _ := counts.Get(name).(*expvar.Int)
	if v == nil {
		return 0
	}
	return v.Value()
}

// Latency returns a copy of the histogram recorded for the named
// function, or nil if nothing has been recorded for it.
func Latency(name string) *hdrhistogram.Histogram {
	mu.Lock()
	defer mu.Unlock()
	h, ok := histograms[name]
	if !ok {
		return nil
	}
	return hdrhistogram.Import(h.Export())
}

func snapshot(name string) *hdrhistogram.Snapshot {
	mu.Lock()
	defer mu.Unlock()
	return histograms[name].Export()
}

// callerName returns the short name (pkg.Func) of the function
// that called RecordElapsed.
func callerName() string {
	var pc [1]uintptr
	if runtime.Callers(3, pc[:]) == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pc[:]).Next()
	name := frame.Function
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

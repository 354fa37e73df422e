// Package history implements UserSessionHistory (spec component C2): a
// fixed-capacity ring buffer of recorded actions plus rolling metrics
// and error-cluster analysis over it, consumed by the cognitive and
// intent analyzers.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is a single session-history record. Once added it is never
// mutated; eviction happens by ring-buffer overwrite only.
type Action struct {
	ID         string
	Timestamp  time.Time
	Type       string
	Success    bool
	DurationMs float64 // -1 when absent
	StartPos   *Point
	EndPos     *Point
}

// Point is a position normalized to [0,1]^2.
type Point struct {
	X, Y float64
}

// HasDuration reports whether DurationMs was supplied on this action.
func (a Action) HasDuration() bool { return a.DurationMs >= 0 }

// NewAction stamps a fresh action with a generated ID and the current
// time, mirroring the teacher's EventID-stamped NATS event structs.
func NewAction(actionType string, success bool) Action {
	return Action{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Type:       actionType,
		Success:    success,
		DurationMs: -1,
	}
}

// WithDuration returns a copy of a with DurationMs set.
func (a Action) WithDuration(ms float64) Action {
	a.DurationMs = ms
	return a
}

// VelocityProfile buckets average action duration.
type VelocityProfile string

const (
	VelocitySlow   VelocityProfile = "slow"
	VelocityMedium VelocityProfile = "medium"
	VelocityFast   VelocityProfile = "fast"
)

// Metrics summarizes a window of the history buffer.
type Metrics struct {
	ErrorRate        float64
	AverageDuration  float64
	ActionVariety    float64 // uniqueTypes / total, in [0,1]
	UniqueTypeCount  int
	RecentErrors     int // failures in the last 5 actions
	VelocityProfile  VelocityProfile
	SampleSize       int
}

// ErrorClusters summarizes consecutive-failure clustering.
type ErrorClusters struct {
	MaxClusterSize     int
	AverageClusterSize float64
	TotalClusters      int
}

// History is a fixed-capacity ring buffer of Actions. Reads (GetMetrics,
// GetErrorClusters, GetLatest) are pure functions of the buffer's
// current contents; they never mutate it and never panic on an empty
// buffer.
//
// Unlike the single-threaded JS original, Add and the read methods can
// legitimately race in Go (the cognitive/intent analyzers poll on their
// own timers concurrently with RecordAction) so History guards its
// state with a mutex.
type History struct {
	mu       sync.RWMutex
	buf      []Action
	capacity int
	next     int
	size     int
}

// New creates a History with the given ring-buffer capacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = 200
	}
	return &History{buf: make([]Action, capacity), capacity: capacity}
}

// Add appends action, evicting the oldest entry if the buffer is full.
// O(1).
func (h *History) Add(a Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = a
	h.next = (h.next + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Size reports current occupancy (never exceeds capacity).
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity reports the buffer's fixed capacity.
func (h *History) Capacity() int { return h.capacity }

// GetLatest returns the last n actions in chronological (oldest→newest)
// order. n is clamped to the buffer's current size.
func (h *History) GetLatest(n int) []Action {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latestLocked(n)
}

func (h *History) latestLocked(n int) []Action {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]Action, n)
	// oldest index among the last `n`:
	start := (h.next - n + h.capacity) % h.capacity
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+i)%h.capacity]
	}
	return out
}

// GetMetrics computes Metrics over the last min(windowSize, Size())
// actions.
func (h *History) GetMetrics(windowSize int) Metrics {
	h.mu.RLock()
	window := h.latestLocked(windowSize)
	h.mu.RUnlock()

	total := len(window)
	if total == 0 {
		return Metrics{VelocityProfile: VelocityMedium}
	}

	failed := 0
	var durationSum float64
	durationCount := 0
	types := make(map[string]struct{}, total)
	for _, a := range window {
		if !a.Success {
			failed++
		}
		if a.HasDuration() {
			durationSum += a.DurationMs
			durationCount++
		}
		types[a.Type] = struct{}{}
	}

	recentErrors := 0
	recentStart := total - 5
	if recentStart < 0 {
		recentStart = 0
	}
	for _, a := range window[recentStart:] {
		if !a.Success {
			recentErrors++
		}
	}

	avgDuration := 0.0
	if durationCount > 0 {
		avgDuration = durationSum / float64(durationCount)
	}

	profile := VelocityMedium
	switch {
	case avgDuration >= 600:
		profile = VelocitySlow
	case avgDuration <= 400 && durationCount > 0:
		profile = VelocityFast
	}

	return Metrics{
		ErrorRate:       float64(failed) / float64(total),
		AverageDuration: avgDuration,
		ActionVariety:   float64(len(types)) / float64(total),
		UniqueTypeCount: len(types),
		RecentErrors:    recentErrors,
		VelocityProfile: profile,
		SampleSize:      total,
	}
}

// GetErrorClusters groups consecutive failures whose inter-arrival is
// within timeWindow into clusters and summarizes cluster sizes.
func (h *History) GetErrorClusters(timeWindow time.Duration) ErrorClusters {
	h.mu.RLock()
	all := h.latestLocked(h.size)
	h.mu.RUnlock()

	var clusters []int
	current := 0
	var lastFailureAt time.Time
	inCluster := false

	flush := func() {
		if current > 0 {
			clusters = append(clusters, current)
		}
		current = 0
		inCluster = false
	}

	for _, a := range all {
		if a.Success {
			flush()
			continue
		}
		if inCluster && a.Timestamp.Sub(lastFailureAt) <= timeWindow {
			current++
		} else {
			flush()
			current = 1
			inCluster = true
		}
		lastFailureAt = a.Timestamp
	}
	flush()

	if len(clusters) == 0 {
		return ErrorClusters{}
	}

	max := 0
	sum := 0
	for _, c := range clusters {
		if c > max {
			max = c
		}
		sum += c
	}

	return ErrorClusters{
		MaxClusterSize:     max,
		AverageClusterSize: float64(sum) / float64(len(clusters)),
		TotalClusters:      len(clusters),
	}
}

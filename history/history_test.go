package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferEvictsOldest(t *testing.T) {
	h := New(3)
	for i := 0; i < 5; i++ {
		h.Add(NewAction("intent:navigate_right", true))
	}
	assert.Equal(t, 3, h.Size())
	assert.Equal(t, 3, h.Capacity())
}

func TestGetLatestIsChronological(t *testing.T) {
	h := New(5)
	for i := 0; i < 5; i++ {
		a := NewAction("t", true)
		a.Timestamp = time.Unix(int64(i), 0)
		h.Add(a)
	}
	latest := h.GetLatest(3)
	assert.Len(t, latest, 3)
	assert.Equal(t, int64(2), latest[0].Timestamp.Unix())
	assert.Equal(t, int64(4), latest[2].Timestamp.Unix())
}

func TestMetricsOnEmptyBufferAreZeroed(t *testing.T) {
	h := New(10)
	m := h.GetMetrics(10)
	assert.Equal(t, 0, m.SampleSize)
	assert.Equal(t, 0.0, m.ErrorRate)
	assert.Equal(t, 0.0, m.AverageDuration)
}

func TestMetricsErrorRateAndVariety(t *testing.T) {
	h := New(20)
	for i := 0; i < 6; i++ {
		h.Add(NewAction("intent:navigate_left", true))
	}
	for i := 0; i < 4; i++ {
		h.Add(NewAction("intent:select", false))
	}

	m := h.GetMetrics(10)
	assert.Equal(t, 10, m.SampleSize)
	assert.InDelta(t, 0.4, m.ErrorRate, 1e-9)
	assert.Equal(t, 2, m.UniqueTypeCount)
	assert.InDelta(t, 0.2, m.ActionVariety, 1e-9)
}

func TestVelocityProfileThresholds(t *testing.T) {
	h := New(10)
	for i := 0; i < 5; i++ {
		h.Add(NewAction("x", true).WithDuration(350))
	}
	assert.Equal(t, VelocityFast, h.GetMetrics(10).VelocityProfile)

	h2 := New(10)
	for i := 0; i < 5; i++ {
		h2.Add(NewAction("x", true).WithDuration(700))
	}
	assert.Equal(t, VelocitySlow, h2.GetMetrics(10).VelocityProfile)

	h3 := New(10)
	for i := 0; i < 5; i++ {
		h3.Add(NewAction("x", true).WithDuration(500))
	}
	assert.Equal(t, VelocityMedium, h3.GetMetrics(10).VelocityProfile)
}

func TestRecentErrorsLooksAtLastFive(t *testing.T) {
	h := New(20)
	for i := 0; i < 10; i++ {
		h.Add(NewAction("x", true))
	}
	for i := 0; i < 3; i++ {
		h.Add(NewAction("x", false))
	}
	for i := 0; i < 2; i++ {
		h.Add(NewAction("x", true))
	}

	m := h.GetMetrics(20)
	assert.Equal(t, 3, m.RecentErrors)
}

func TestErrorClustersGroupsByInterArrival(t *testing.T) {
	h := New(20)
	base := time.Unix(0, 0)
	add := func(offset time.Duration, success bool) {
		a := NewAction("x", success)
		a.Timestamp = base.Add(offset)
		h.Add(a)
	}

	add(0, false)
	add(1*time.Second, false)
	add(2*time.Second, false) // cluster of 3, all within 5s windows
	add(20*time.Second, true)
	add(21*time.Second, false)
	add(22*time.Second, false) // cluster of 2

	clusters := h.GetErrorClusters(5 * time.Second)
	assert.Equal(t, 3, clusters.MaxClusterSize)
	assert.Equal(t, 2, clusters.TotalClusters)
	assert.InDelta(t, 2.5, clusters.AverageClusterSize, 1e-9)
}

func TestErrorClustersOnNoFailures(t *testing.T) {
	h := New(10)
	for i := 0; i < 5; i++ {
		h.Add(NewAction("x", true))
	}
	clusters := h.GetErrorClusters(5 * time.Second)
	assert.Equal(t, 0, clusters.TotalClusters)
}

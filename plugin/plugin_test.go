package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveOptionsDefaultsToDefaultInitTimeoutAndZeroPriority(t *testing.T) {
	o := ResolveOptions()
	assert.Equal(t, 0, o.Priority)
	assert.Nil(t, o.Config)
	assert.Equal(t, DefaultInitTimeout, o.InitTimeout)
}

func TestResolveOptionsAppliesGivenOptionsOverDefaults(t *testing.T) {
	o := ResolveOptions(WithPriority(150), WithConfig("cfg"), WithInitTimeout(2*time.Second))
	assert.Equal(t, 150, o.Priority)
	assert.Equal(t, "cfg", o.Config)
	assert.Equal(t, 2*time.Second, o.InitTimeout)
}

func TestIsCriticalThresholdMatchesCriticalPriorityConstant(t *testing.T) {
	assert.False(t, IsCritical(CriticalPriority-1))
	assert.True(t, IsCritical(CriticalPriority))
	assert.True(t, IsCritical(CriticalPriority+50))
}

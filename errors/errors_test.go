package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavErrorFormatting(t *testing.T) {
	cause := errors.New("boom")

	err := PluginFailure("keyboard", "init", cause)
	assert.Equal(t, KindPluginFailure, err.Kind)
	assert.Contains(t, err.Error(), "keyboard")
	assert.Contains(t, err.Error(), "boom")

	cv := ContractViolation("duplicate plugin name: keyboard")
	assert.Equal(t, KindContractViolation, cv.Kind)
	assert.NotContains(t, cv.Error(), "[]")
}

func TestNavErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := DispatchFailure("reducer panicked", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindDispatchFailure))
	assert.False(t, Is(err, KindTimeout))
}

func TestIsRejectsForeignErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindLoop))
}

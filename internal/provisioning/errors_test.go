package provisioning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSuppressedKeepsPrimaryCause(t *testing.T) {
	primary := &ValidationError{Reason: "bad request"}
	err := WithSuppressed(primary, []error{errors.New("rollback failed")})

	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "bad request")
	assert.Contains(t, err.Error(), "rollback failed")
}

func TestWithSuppressedWithoutFailuresReturnsPrimary(t *testing.T) {
	primary := errors.New("boom")
	assert.Same(t, primary, WithSuppressed(primary, nil))
}

func TestWithSuppressedMergesIntoExistingCleanup(t *testing.T) {
	inner := WithSuppressed(errors.New("boom"), []error{errors.New("first")})
	outer := WithSuppressed(inner, []error{errors.New("second")})

	var cleanup *CleanupError
	require.True(t, errors.As(outer, &cleanup))
	assert.Len(t, cleanup.Suppressed, 2)

	// No nested cleanup errors.
	var nested *CleanupError
	assert.False(t, errors.As(cleanup.Primary, &nested))
}

func TestTeardownErrorUnwrapsSteps(t *testing.T) {
	timeout := &UndeployTimeoutError{NodeUUID: "node-1"}
	err := &TeardownError{
		NodeUUID: "node-1",
		Steps:    []error{errors.New("detach failed"), timeout},
	}

	assert.True(t, IsUndeployTimeout(err))
	assert.Contains(t, err.Error(), "detach failed")
}

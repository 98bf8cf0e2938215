package openstack

import (
	"errors"
	"strings"
)

// ErrConflict is returned when the service rejects a mutation because
// another caller got there first (reservation races, locked nodes).
var ErrConflict = errors.New("conflict with remote state")

// ErrNotFound is returned when the referenced resource does not exist.
// Teardown treats it as success.
var ErrNotFound = errors.New("resource not found")

// IsConflict reports whether err indicates a remote conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFailureState reports whether a provision state is terminal-failed.
func IsFailureState(state string) bool {
	return state == StateError || state == StateDeployFail ||
		strings.HasSuffix(state, " failed") || strings.HasSuffix(state, "_failed")
}

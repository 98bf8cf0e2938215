package provisioning

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a malformed request, caught before any remote
// call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid instance request: " + e.Reason
}

// NoNodesAvailableError reports scheduling exhaustion: no node matched the
// request, or every matching node was claimed by someone else first.
type NoNodesAvailableError struct {
	Reason string
}

func (e *NoNodesAvailableError) Error() string {
	return "no nodes available: " + e.Reason
}

// ReservationConflictError reports a lost reservation race on one node. It
// is retried internally against the remaining pool and only surfaces in
// logs.
type ReservationConflictError struct {
	NodeUUID string
}

func (e *ReservationConflictError) Error() string {
	return fmt.Sprintf("node %s was reserved by another caller", e.NodeUUID)
}

// AttachmentError reports a failure to bind ports to the node's physical
// interfaces.
type AttachmentError struct {
	NodeUUID string
	Reason   string
	Err      error
}

func (e *AttachmentError) Error() string {
	msg := fmt.Sprintf("failed to attach ports to node %s: %s", e.NodeUUID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// DeployTimeoutError reports that a deployment did not reach a terminal
// state in time. Remote state is left as last observed; no rollback is
// performed.
type DeployTimeoutError struct {
	NodeUUID  string
	LastState string
	Timeout   time.Duration
}

func (e *DeployTimeoutError) Error() string {
	return fmt.Sprintf("deployment of node %s did not finish within %v (last state %q)",
		e.NodeUUID, e.Timeout, e.LastState)
}

// UndeployTimeoutError reports that a node did not return to the available
// state in time during teardown.
type UndeployTimeoutError struct {
	NodeUUID  string
	LastState string
	Timeout   time.Duration
}

func (e *UndeployTimeoutError) Error() string {
	return fmt.Sprintf("undeploy of node %s did not finish within %v (last state %q)",
		e.NodeUUID, e.Timeout, e.LastState)
}

// AlreadyActiveError rejects a deploy request whose target node already
// carries an active instance.
type AlreadyActiveError struct {
	NodeUUID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("node %s already has an active instance", e.NodeUUID)
}

// TeardownError aggregates non-fatal step failures of one teardown run.
// Idempotent steps after a failed one are still attempted.
type TeardownError struct {
	NodeUUID string
	Steps    []error
}

func (e *TeardownError) Error() string {
	msgs := make([]string, 0, len(e.Steps))
	for _, err := range e.Steps {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("teardown of node %s partially failed: %s",
		e.NodeUUID, strings.Join(msgs, "; "))
}

func (e *TeardownError) Unwrap() []error { return e.Steps }

// CleanupError carries a primary failure together with errors suppressed
// during the best-effort rollback it triggered. The primary cause is never
// replaced by a rollback failure.
type CleanupError struct {
	Primary    error
	Suppressed []error
}

func (e *CleanupError) Error() string {
	if len(e.Suppressed) == 0 {
		return e.Primary.Error()
	}
	msgs := make([]string, 0, len(e.Suppressed))
	for _, err := range e.Suppressed {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s (cleanup also failed: %s)", e.Primary, strings.Join(msgs, "; "))
}

func (e *CleanupError) Unwrap() error { return e.Primary }

// WithSuppressed pairs primary with rollback failures; with none it
// returns primary unchanged. If primary already carries suppressed errors
// the new ones are appended instead of nesting.
func WithSuppressed(primary error, suppressed []error) error {
	if primary == nil {
		return nil
	}
	if len(suppressed) == 0 {
		return primary
	}
	var cleanup *CleanupError
	if errors.As(primary, &cleanup) {
		cleanup.Suppressed = append(cleanup.Suppressed, suppressed...)
		return primary
	}
	return &CleanupError{Primary: primary, Suppressed: suppressed}
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNoNodesAvailable reports whether err is a scheduling exhaustion.
func IsNoNodesAvailable(err error) bool {
	var target *NoNodesAvailableError
	return errors.As(err, &target)
}

// IsDeployTimeout reports whether err is a deployment timeout.
func IsDeployTimeout(err error) bool {
	var target *DeployTimeoutError
	return errors.As(err, &target)
}

// IsUndeployTimeout reports whether err is a teardown timeout.
func IsUndeployTimeout(err error) bool {
	var target *UndeployTimeoutError
	return errors.As(err, &target)
}

// IsAlreadyActive reports whether err rejects a re-deploy of an active
// instance.
func IsAlreadyActive(err error) bool {
	var target *AlreadyActiveError
	return errors.As(err, &target)
}

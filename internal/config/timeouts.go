package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the configurable waits of the lifecycle drivers.
type Timeouts struct {
	// Deploy bounds the wait for a deployment to reach a terminal state.
	Deploy time.Duration
	// Undeploy bounds the wait for a node to return to available.
	Undeploy time.Duration
	// PollInterval is the pause between provision-state polls.
	PollInterval time.Duration

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
}

// LoadTimeouts loads timeouts from environment variables, falling back to
// defaults when unset or invalid.
//
// Environment Variables:
//   - IRONSMITH_TIMEOUT_DEPLOY (default: 30m)
//   - IRONSMITH_TIMEOUT_UNDEPLOY (default: 15m)
//   - IRONSMITH_POLL_INTERVAL (default: 5s)
//   - IRONSMITH_RETRY_MAX_ATTEMPTS (default: 5)
//   - IRONSMITH_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Deploy:            parseDuration("IRONSMITH_TIMEOUT_DEPLOY", 30*time.Minute),
		Undeploy:          parseDuration("IRONSMITH_TIMEOUT_UNDEPLOY", 15*time.Minute),
		PollInterval:      parseDuration("IRONSMITH_POLL_INTERVAL", 5*time.Second),
		RetryMaxAttempts:  parseInt("IRONSMITH_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("IRONSMITH_RETRY_INITIAL_DELAY", time.Second),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

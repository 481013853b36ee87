package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timing values.
// Each one can be overridden via an environment variable.
type Timeouts struct {
	Ready             time.Duration // Readiness gates on node and dashboard workloads
	CertJob           time.Duration // Certificate generation job completion
	HelperStartup     time.Duration // Backup helper pod readiness
	PollInterval      time.Duration // Interval between condition polls
	SettleDelay       time.Duration // Pause before the post-deploy health query
	GracePeriod       time.Duration // Cancellation window before the unattended stale sweep
	RetryMaxAttempts  int           // Maximum number of retry attempts for backup uploads
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timing configuration from environment variables.
// If a variable is not set or invalid, the default value is used.
//
// Environment Variables:
//   - OSDEPLOY_READY_TIMEOUT (default: 300s)
//   - OSDEPLOY_CERT_JOB_TIMEOUT (default: 60s)
//   - OSDEPLOY_HELPER_TIMEOUT (default: 30s)
//   - OSDEPLOY_POLL_INTERVAL (default: 5s)
//   - OSDEPLOY_SETTLE_DELAY (default: 30s)
//   - OSDEPLOY_GRACE_PERIOD (default: 10s)
//   - OSDEPLOY_RETRY_MAX_ATTEMPTS (default: 3)
//   - OSDEPLOY_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Ready:             parseDuration("OSDEPLOY_READY_TIMEOUT", 300*time.Second),
		CertJob:           parseDuration("OSDEPLOY_CERT_JOB_TIMEOUT", 60*time.Second),
		HelperStartup:     parseDuration("OSDEPLOY_HELPER_TIMEOUT", 30*time.Second),
		PollInterval:      parseDuration("OSDEPLOY_POLL_INTERVAL", 5*time.Second),
		SettleDelay:       parseDuration("OSDEPLOY_SETTLE_DELAY", 30*time.Second),
		GracePeriod:       parseDuration("OSDEPLOY_GRACE_PERIOD", 10*time.Second),
		RetryMaxAttempts:  parseInt("OSDEPLOY_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: parseDuration("OSDEPLOY_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// TestTimeouts returns very short values so tests never sit in real waits.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		Ready:             100 * time.Millisecond,
		CertJob:           100 * time.Millisecond,
		HelperStartup:     100 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		SettleDelay:       0,
		GracePeriod:       10 * time.Millisecond,
		RetryMaxAttempts:  2,
		RetryInitialDelay: 10 * time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
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

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
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

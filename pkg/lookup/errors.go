package lookup

import (
	"fmt"
	"time"
)

// NoHostsError: zero hosts known for the service after overrides and
// discovery. The caller may retry later once caches or backoff change.
type NoHostsError struct {
	Service string
	Preset  NetworkPreset
}

func (e *NoHostsError) Error() string {
	return fmt.Sprintf("no competent hosts found for service %q on %s", e.Service, e.Preset)
}

// AllHostsBackoffError: every candidate is currently penalized.
// RetryAfter estimates when the soonest backoff window ends.
type AllHostsBackoffError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *AllHostsBackoffError) Error() string {
	return fmt.Sprintf("all hosts for service %q are backing off, retry in ~%dms", e.Service, e.RetryAfter.Milliseconds())
}

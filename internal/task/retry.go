package task

import "regexp"

// RetryPolicy governs whether a failed Method() invocation is retried,
// mirroring the original source's `retry` task directive.
type RetryPolicy struct {
	DelaySeconds     float64 `mapstructure:"delay_seconds"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	WhenErrorLike    string  `mapstructure:"when_error_like"`
	WhenErrorNotLike string  `mapstructure:"when_error_not_like"`
}

// effectiveMaxAttempts returns the configured max attempts, defaulting to 1
// (no retry) when unset.
func (r RetryPolicy) effectiveMaxAttempts() int {
	if r.MaxAttempts <= 0 {
		return 1
	}
	return r.MaxAttempts
}

func (r RetryPolicy) effectiveDelaySeconds() float64 {
	if r.DelaySeconds <= 0 {
		return 1.0
	}
	return r.DelaySeconds
}

// shouldRetry ANDs the four conditions spec.md §4.D names: the error
// message matches when_error_like (if set), does not match
// when_error_not_like (if set), attempts remain, and the task has not been
// asked to terminate.
func (r RetryPolicy) shouldRetry(errMsg string, attempts int, status Status) bool {
	if r.WhenErrorLike != "" {
		matched, err := regexp.MatchString("(?i)"+r.WhenErrorLike, errMsg)
		if err != nil || !matched {
			return false
		}
	}

	if r.WhenErrorNotLike != "" {
		matched, err := regexp.MatchString("(?i)"+r.WhenErrorNotLike, errMsg)
		if err == nil && matched {
			return false
		}
	}

	if attempts >= r.effectiveMaxAttempts() {
		return false
	}

	if status == StatusTerminating {
		return false
	}

	return true
}

package core

import "time"

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// Window is the window that produced the decision: the violated window on
	// rejection, otherwise the tightest window.
	Window time.Duration `json:"window"`
}

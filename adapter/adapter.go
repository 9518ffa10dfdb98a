// Package adapter defines the notification boundary for test results.
//
// Adapters publish test completion events to downstream systems so CI
// dashboards and alerting can react without parsing run reports. The
// runtime owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// EventType is the single event type currently published.
const EventType = "test_completed"

// TestCompletedEvent is the payload published when a test run finishes.
type TestCompletedEvent struct {
	EventType       string  `json:"event_type"` // always "test_completed"
	Test            string  `json:"test"`
	Domain          string  `json:"domain"`
	AppID           string  `json:"app_id"`
	Username        string  `json:"username"`
	Passed          bool    `json:"passed"`
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
	Timestamp       string  `json:"timestamp"` // ISO 8601
}

// Adapter publishes test completion events to a downstream system.
// Implementations must be safe for reuse across runs in one suite.
type Adapter interface {
	// Publish sends a test completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TestCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

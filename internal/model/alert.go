package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	// AlertTypeDrift fires when a boundary is observed too far from its
	// scheduled instant.
	AlertTypeDrift AlertType = "boundary_drift"

	// AlertTypeClockUnavailable fires when the time source keeps
	// reporting the unavailable sentinel.
	AlertTypeClockUnavailable AlertType = "clock_unavailable"

	// AlertTypeJobFailure fires when a periodic job reports an error.
	AlertTypeJobFailure AlertType = "job_failure"
)

// AlertRule defines a rule for generating alerts
type AlertRule struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        AlertType     `json:"type"`
	Schedule    string        `json:"schedule,omitempty"`
	ThresholdMS int64         `json:"threshold_ms,omitempty"`
	Severity    AlertSeverity `json:"severity"`
	Silenced    bool          `json:"silenced"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Alert represents an alert event
type Alert struct {
	ID        string                 `json:"id"`
	RuleID    string                 `json:"rule_id"`
	Type      AlertType              `json:"type"`
	Severity  AlertSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

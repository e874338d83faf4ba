package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeLogin             EventType = "auth.login"
	EventTypeLoginFailed       EventType = "auth.login_failed"
	EventTypeLogout            EventType = "auth.logout"
	EventTypeSignupBootstrap   EventType = "auth.signup_bootstrap"
	EventTypeSignupInvitation  EventType = "auth.signup_invitation"
	EventTypeTokenValidateFail EventType = "auth.token_validate_fail"
	EventTypeRequest           EventType = "auth.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	AccountID string `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`

	// Request context
	Provider  string `json:"provider,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Path      string `json:"path,omitempty"`

	Message string `json:"message,omitempty"`
}

package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// AuthEventTypes lists every event an identity client may emit.
func AuthEventTypes() []EventType {
	return []EventType{
		EventInitialSession,
		EventSignedIn,
		EventSignedOut,
		EventTokenRefreshed,
		EventUserUpdated,
	}
}

// Event represents a state change pushed to subscribers.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

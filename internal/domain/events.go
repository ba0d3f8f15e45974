package domain

import "time"

type EventType string

const (
	EventCertificateExpiring EventType = "certificate.expiring"
	EventCertificateExpired  EventType = "certificate.expired"
	EventCertificateRevoked  EventType = "certificate.revoked"
	EventCertificateRenewed  EventType = "certificate.renewed"
	EventRequestStarted      EventType = "request.started"
	EventRequestCompleted    EventType = "request.completed"
	EventRequestCancelled    EventType = "request.cancelled"
	EventRequestExpired      EventType = "request.expired"
	EventSignatureCreated    EventType = "signature.created"
	EventSignatureRecheck    EventType = "signature.reverify"
	EventValidationFailed    EventType = "validation.failed"
)

// Event is the notify-on-event contract toward the notification gateway.
// Delivery mechanics are external; dispatch is fire-and-forget.
type Event struct {
	Type       EventType      `json:"type"`
	Recipients []string       `json:"recipients,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditEvent is one entry in the external append-only audit log.
type AuditEvent struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Detail     map[string]any
	CreatedAt  time.Time
}

package audit

import (
	"context"
	"time"
)

// AuditEvent names a change to the registry.
type AuditEvent string

const (
	EventCRCreated AuditEvent = "cr_created"
	EventCRUpdated AuditEvent = "cr_updated"
	EventCRDeleted AuditEvent = "cr_deleted"
)

// Event is emitted after a mutation has been saved. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Action    AuditEvent `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
	// Subject is the crId the event is about.
	Subject string `json:"subject"`
	// System is the canonical bucket key the CR is filed under.
	System    string `json:"system,omitempty"`
	Version   int64  `json:"version,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	// ActorID names the caller that triggered the mutation (http, crctl, import).
	ActorID string `json:"actorId,omitempty"`
	// Fields lists the fields an update touched.
	Fields []string `json:"fields,omitempty"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

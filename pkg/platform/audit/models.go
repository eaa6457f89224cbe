package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened to a register record.
type Action string

const (
	ActionEntityCreated    Action = "entity_created"
	ActionEntityRenamed    Action = "entity_renamed"
	ActionSlugAssigned     Action = "slug_assigned"
	ActionVersionDerived   Action = "version_derived"
	ActionVersionConfirmed Action = "version_confirmed"
	ActionVersionPublished Action = "version_published"
	ActionVersionArchived  Action = "version_archived"
)

// Event is emitted from lifecycle logic to capture key register actions.
// Kept transport-agnostic so the outbox store and the Kafka publisher can
// share it.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Action    Action    `json:"action"`
	Kind      string    `json:"kind"`
	EntityID  uuid.UUID `json:"entity_id"`
	VersionID uuid.UUID `json:"version_id,omitempty"`
	// Actor is the acting editor; empty for system-initiated actions.
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence seam for audit events. The postgres
// implementation writes to the outbox table inside the caller's transaction;
// the relay worker drains it to Kafka.
type Store interface {
	Append(ctx context.Context, event Event) error
}

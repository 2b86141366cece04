package events

import (
	"strings"
	"time"

	"cms-backend/domain/keyspace"
)

// Source identifies this service on the event bus.
const Source = "cms.indexing"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Action names the mutation an audit event records.
type Action string

const (
	ActionSaved    Action = "saved"
	ActionDeleted  Action = "deleted"
	ActionRepriced Action = "repriced"
)

// EntityChanged is raised after a source entity and its projections were
// written or removed.
type EntityChanged struct {
	BaseEvent
	Scope    keyspace.Scope `json:"scope"`
	Kind     keyspace.Kind  `json:"kind"`
	EntityID string         `json:"entity_id"`
	Action   Action         `json:"action"`
	Actor    string         `json:"actor,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// NewEntityChanged creates an EntityChanged event. The event type is
// "<kind>.<action>" in lower case, e.g. "coupon.saved".
func NewEntityChanged(scope keyspace.Scope, kind keyspace.Kind, entityID string, action Action, actor string, timestamp time.Time) EntityChanged {
	return EntityChanged{
		BaseEvent: BaseEvent{
			AggregateID: entityID,
			EventType:   EventType(kind, action),
			Timestamp:   timestamp,
			Version:     1,
		},
		Scope:    scope,
		Kind:     kind,
		EntityID: entityID,
		Action:   action,
		Actor:    actor,
	}
}

// WithDetails attaches free-form details to the event.
func (e EntityChanged) WithDetails(details map[string]any) EntityChanged {
	e.Details = details
	return e
}

// EventType builds the event type string for a kind and action.
func EventType(kind keyspace.Kind, action Action) string {
	return strings.ToLower(string(kind)) + "." + string(action)
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cms-backend/application/collector"
	"cms-backend/application/ports"
	"cms-backend/domain/events"
	"cms-backend/domain/keyspace"
	"cms-backend/pkg/auth"
)

// AuditEntry is one AUDIT record.
type AuditEntry struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	Kind      string         `json:"kind"`
	EntityID  string         `json:"entityId"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditService records completed mutations in the scope's audit log and
// forwards them to the event publisher.
type AuditService struct {
	store     ports.KeyValueStore
	collector *collector.Collector
	publisher ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditService creates a new audit service. publisher may be nil.
func NewAuditService(store ports.KeyValueStore, coll *collector.Collector, publisher ports.EventPublisher, logger *zap.Logger) *AuditService {
	return &AuditService{
		store:     store,
		collector: coll,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Record writes the audit entry for a mutation that already succeeded and
// publishes it. A publish failure is logged only; the entry stays written.
func (s *AuditService) Record(ctx context.Context, scope keyspace.Scope, kind keyspace.Kind, entityID string, action events.Action, details map[string]any) (AuditEntry, error) {
	event := events.NewEntityChanged(scope, kind, entityID, action, auth.Actor(ctx), s.now().UTC()).WithDetails(details)
	entry := AuditEntry{
		ID:        uuid.NewString(),
		EventType: event.EventType,
		Kind:      string(kind),
		EntityID:  entityID,
		Action:    string(action),
		Actor:     event.Actor,
		Timestamp: event.Timestamp,
		Details:   details,
	}

	key, err := keyspace.AuditKey(scope, entry.Timestamp, entry.ID)
	if err != nil {
		return AuditEntry{}, err
	}
	attrs := map[string]any{
		"auditId":   entry.ID,
		"eventType": entry.EventType,
		"kind":      entry.Kind,
		"entityId":  entry.EntityID,
		"action":    entry.Action,
		"actor":     entry.Actor,
		"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
	}
	if len(details) > 0 {
		attrs["details"] = keyspace.CloneAttributes(details)
	}
	if err := s.store.Put(ctx, keyspace.NewItem(key, attrs)); err != nil {
		s.logger.Error("Failed to write audit entry",
			zap.String("scope", scope.String()),
			zap.String("event_type", entry.EventType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return AuditEntry{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish audit event",
				zap.String("scope", scope.String()),
				zap.String("event_type", entry.EventType),
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	}
	return entry, nil
}

// Entries returns the audit log of scope, oldest first.
func (s *AuditService) Entries(ctx context.Context, scope keyspace.Scope) ([]AuditEntry, error) {
	items, err := s.collector.Collect(ctx, scope, keyspace.PrefixFor(keyspace.KindAudit))
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntry, 0, len(items))
	for _, item := range items {
		ts, _ := time.Parse(time.RFC3339Nano, item.String("timestamp"))
		entry := AuditEntry{
			ID:        item.String("auditId"),
			EventType: item.String("eventType"),
			Kind:      item.String("kind"),
			EntityID:  item.String("entityId"),
			Action:    item.String("action"),
			Actor:     item.String("actor"),
			Timestamp: ts,
		}
		if d, ok := item.Attributes["details"].(map[string]any); ok {
			entry.Details = d
		}
		out = append(out, entry)
	}
	return out, nil
}

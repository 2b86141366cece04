// Package eventbridge publishes audit events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/events"
	pkgerrors "cms-backend/pkg/errors"
)

// MaxBatchSize is the largest number of entries one PutEvents call accepts.
const MaxBatchSize = 10

// API is the subset of the EventBridge client the publisher calls.
type API interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher on EventBridge
type Publisher struct {
	client       API
	eventBusName string
	source       string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       events.Source,
		logger:       logger,
	}
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of MaxBatchSize
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for start := 0; start < len(domainEvents); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(domainEvents))
		if err := p.publishBatch(ctx, domainEvents[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, batch []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, event := range batch {
		detail, err := json.Marshal(event)
		if err != nil {
			return pkgerrors.NewInternalError("failed to encode event").WithCause(err).
				WithDetail("eventType", event.GetEventType())
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{resource(event)},
		})
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return pkgerrors.NewExternalError("eventbridge", err)
	}

	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil && i < len(batch) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", batch[i].GetEventType()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)))
			}
		}
		return pkgerrors.NewExternalError("eventbridge",
			fmt.Errorf("%d of %d events failed to publish", out.FailedEntryCount, len(entries)))
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName))
	return nil
}

func resource(event events.DomainEvent) string {
	if changed, ok := event.(events.EntityChanged); ok {
		return fmt.Sprintf("cms:%s:%s/%s", changed.Scope, changed.Kind, changed.EntityID)
	}
	return "cms:" + event.GetAggregateID()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/contracts"
)

// MessagePublisher is the broker side of RoomPublisher.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// RoomPublisher ships room lifecycle events to the broker.
type RoomPublisher struct {
	broker MessagePublisher
}

func NewRoomPublisher(broker MessagePublisher) *RoomPublisher {
	return &RoomPublisher{
		broker: broker,
	}
}

func (p *RoomPublisher) Publish(ctx context.Context, event *domain.RoomAuditLog) error {
	routingKey, ok := contracts.RoutingKey(event.EventType)
	if !ok {
		return fmt.Errorf("no routing key for event type %q", event.EventType)
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.broker.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		RoomID: event.RoomID,
		Data:   eventJSON,
	})
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/contracts"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"github.com/hilthontt/murmur/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageConsumer is the broker side of RoomAuditConsumer.
type MessageConsumer interface {
	ConsumeMessages(ctx context.Context, queueName string, handler messaging.MessageHandler) error
}

// RoomAuditConsumer stores every lifecycle event from the audit queue.
type RoomAuditConsumer struct {
	broker     MessageConsumer
	repository domain.RoomAuditRepository
	logger     logging.Logger
}

func NewRoomAuditConsumer(broker MessageConsumer, repository domain.RoomAuditRepository, logger logging.Logger) *RoomAuditConsumer {
	return &RoomAuditConsumer{
		broker:     broker,
		repository: repository,
		logger:     logger,
	}
}

func (c *RoomAuditConsumer) Listen(ctx context.Context) error {
	return c.broker.ConsumeMessages(ctx, messaging.RoomAuditQueue, c.handle)
}

func (c *RoomAuditConsumer) handle(ctx context.Context, msg amqp.Delivery) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	var event domain.RoomAuditLog
	if err := json.Unmarshal(message.Data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal room event: %w", err)
	}
	if event.ID == "" || event.RoomID == "" {
		return fmt.Errorf("incomplete room event on %q", msg.RoutingKey)
	}

	if err := c.repository.Log(ctx, &event); err != nil {
		return fmt.Errorf("failed to store room event: %w", err)
	}

	c.logger.Debug(logging.MongoDB, logging.Insert, "room event stored", map[logging.ExtraKey]any{
		logging.RoomID:    event.RoomID,
		logging.EventType: event.EventType,
	})
	return nil
}

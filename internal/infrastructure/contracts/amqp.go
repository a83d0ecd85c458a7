package contracts

import "github.com/hilthontt/murmur/internal/domain"

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys - using consistent event/command patterns
const (
	EventRoomCreated  = "room.created"
	EventRoomDeleted  = "room.deleted"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
	EventMemberKicked = "member.kicked"
	EventMemberBanned = "member.banned"
)

// RoomAuditRoutingKeys lists every key the audit queue is bound to.
var RoomAuditRoutingKeys = []string{
	EventRoomCreated,
	EventRoomDeleted,
	EventMemberJoined,
	EventMemberLeft,
	EventMemberKicked,
	EventMemberBanned,
}

// RoutingKey maps a lifecycle event onto its routing key.
func RoutingKey(eventType domain.RoomEventType) (string, bool) {
	switch eventType {
	case domain.EventRoomCreated:
		return EventRoomCreated, true
	case domain.EventRoomDeleted:
		return EventRoomDeleted, true
	case domain.EventMemberJoined:
		return EventMemberJoined, true
	case domain.EventMemberLeft:
		return EventMemberLeft, true
	case domain.EventMemberKicked:
		return EventMemberKicked, true
	case domain.EventMemberBanned:
		return EventMemberBanned, true
	}
	return "", false
}

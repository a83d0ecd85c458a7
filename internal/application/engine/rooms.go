package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"go.opentelemetry.io/otel/attribute"
)

type CreateRoomInput struct {
	Name         string
	Tags         []string
	Locked       bool
	Password     string
	ConnectionID string
}

type RoomFilter struct {
	Search string
	Tags   []string
}

// RoomState is the detailed view of a single room for one viewer.
type RoomState struct {
	domain.RoomSummary
	Users   []domain.Member `json:"users"`
	IsOwner bool            `json:"isOwner"`
}

// CreateRoom validates and stores a new room owned by the calling connection,
// then announces the refreshed room list to everyone.
func (e *Engine) CreateRoom(ctx context.Context, input CreateRoomInput) (summary domain.RoomSummary, notes []Notification, err error) {
	ctx, finish := e.start(ctx, "create_room")
	defer func() { finish(err) }()

	id, err := e.roomIDs()
	if err != nil {
		return domain.RoomSummary{}, nil, fmt.Errorf("failed to generate room id: %w", err)
	}

	// built outside the lock, hashing a password is slow
	room, err := domain.NewRoom(id, domain.NewRoomInput{
		Name:     input.Name,
		Tags:     input.Tags,
		Locked:   input.Locked,
		Password: input.Password,
		Owner:    input.ConnectionID,
	}, e.now(), e.hasher, e.cfg.Retention)
	if err != nil {
		return domain.RoomSummary{}, nil, err
	}

	e.mu.Lock()
	deleted := e.store.Sweep(e.now())
	for attempt := 1; ; attempt++ {
		err = e.store.Create(room)
		if !errors.Is(err, domain.ErrRoomAlreadyExists) || attempt == maxRoomIDAttempts {
			break
		}
		if room.ID, err = e.roomIDs(); err != nil {
			break
		}
	}
	if err != nil {
		e.mu.Unlock()
		return domain.RoomSummary{}, nil, fmt.Errorf("failed to store room: %w", err)
	}
	summary = room.Summary()
	notes = []Notification{toEveryone(EventRoomList, RoomListPayload{Rooms: e.listLocked(RoomFilter{})})}
	e.observeStore()
	e.mu.Unlock()

	e.logger.Info(logging.Room, logging.Lifecycle, "room created", map[logging.ExtraKey]any{
		logging.RoomID:       summary.ID,
		logging.ConnectionID: input.ConnectionID,
	})

	events := e.deletedEvents(deleted)
	events = append(events, domain.NewRoomCreatedLog(summary))
	e.publish(ctx, events)

	return summary, notes, nil
}

// ListRooms returns live rooms in creation order, filtered by a case-insensitive
// name substring and by tag intersection.
func (e *Engine) ListRooms(ctx context.Context, filter RoomFilter) []domain.RoomSummary {
	_, finish := e.start(ctx, "get_rooms")
	defer finish(nil)

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.listLocked(filter)
}

func (e *Engine) listLocked(filter RoomFilter) []domain.RoomSummary {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	tags := normalizeFilterTags(filter.Tags)

	out := make([]domain.RoomSummary, 0)
	for _, room := range e.store.List(e.now()) {
		if term != "" && !strings.Contains(strings.ToLower(room.Name), term) {
			continue
		}
		if len(tags) > 0 && !room.HasAnyTag(tags) {
			continue
		}
		out = append(out, room.Summary())
	}
	return out
}

// QuickMatch picks the first unlocked room sharing a preferred tag, falling
// back to the first unlocked room of any kind.
func (e *Engine) QuickMatch(ctx context.Context, preferredTags []string) (roomID string, err error) {
	_, finish := e.start(ctx, "quick_join")
	defer func() { finish(err) }()

	tags := normalizeFilterTags(preferredTags)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var fallback string
	for _, room := range e.store.List(e.now()) {
		if room.Locked {
			continue
		}
		if len(tags) == 0 || room.HasAnyTag(tags) {
			return room.ID, nil
		}
		if fallback == "" {
			fallback = room.ID
		}
	}

	if fallback == "" {
		return "", domain.ErrNoMatch
	}
	return fallback, nil
}

// ListTags returns every distinct tag in use, in first-seen order.
func (e *Engine) ListTags(ctx context.Context) []string {
	_, finish := e.start(ctx, "get_tags")
	defer finish(nil)

	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := mapset.NewThreadUnsafeSet[string]()
	tags := make([]string, 0)
	for _, room := range e.store.List(e.now()) {
		for _, t := range room.Tags {
			if seen.Add(t) {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// GetRoomState returns the room projection with its members as seen by viewer.
func (e *Engine) GetRoomState(ctx context.Context, roomID, viewer string) (state *RoomState, err error) {
	_, finish := e.start(ctx, "get_room_state", attribute.String("murmur.room_id", roomID))
	defer func() { finish(err) }()

	e.mu.RLock()
	defer e.mu.RUnlock()

	room, err := e.store.GetByID(roomID, e.now())
	if err != nil {
		return nil, err
	}

	return &RoomState{
		RoomSummary: room.Summary(),
		Users:       room.Members(),
		IsOwner:     room.IsOwner(viewer),
	}, nil
}

// Messages returns the retained chat history of a room, oldest first. Members
// always see it; anyone else only for unlocked rooms they are not banned from.
func (e *Engine) Messages(ctx context.Context, roomID, viewer string) (msgs []domain.Message, err error) {
	_, finish := e.start(ctx, "get_messages", attribute.String("murmur.room_id", roomID))
	defer func() { finish(err) }()

	e.mu.RLock()
	defer e.mu.RUnlock()

	room, err := e.store.GetByID(roomID, e.now())
	if err != nil {
		return nil, err
	}

	switch {
	case room.IsMember(viewer):
	case room.IsBanned(viewer):
		return nil, domain.ErrBanned
	case room.Locked:
		return nil, domain.ErrLockedPasswordRequired
	}
	return room.Messages(), nil
}

func normalizeFilterTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (e *Engine) deletedEvents(roomIDs []string) []*domain.RoomAuditLog {
	events := make([]*domain.RoomAuditLog, 0, len(roomIDs))
	for _, id := range roomIDs {
		events = append(events, domain.NewRoomDeletedLog(id, "grace_expired", e.now()))
	}
	return events
}

package domain

import (
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/murmur/internal/infrastructure/retention"
	"github.com/hilthontt/murmur/internal/infrastructure/validate"
)

const (
	MaxRoomNameLength = 50
	MaxTags           = 10
	MaxTagLength      = 24

	DefaultMessageCapacity    = 100
	DefaultTranscriptCapacity = 200
)

var (
	validateRoomName = validate.Field("name",
		validate.Required(),
		validate.MaxLength(MaxRoomNameLength),
		validate.NoControlChars(),
	)
	validateTag = validate.Field("tag",
		validate.MaxLength(MaxTagLength),
		validate.NoControlChars(),
	)
	validatePassword = validate.Field("password",
		validate.Required(),
		validate.MaxBytes(72),
	)
)

// NewRoomInput carries the creator supplied room settings.
type NewRoomInput struct {
	Name     string
	Tags     []string
	Locked   bool
	Password string
	Owner    string
}

// Retention sizes the per-room history buffers.
type Retention struct {
	Messages    int
	Transcripts int
}

func DefaultRetention() Retention {
	return Retention{
		Messages:    DefaultMessageCapacity,
		Transcripts: DefaultTranscriptCapacity,
	}
}

// OrDefault replaces unset or negative sizes with the package defaults.
func (r Retention) OrDefault() Retention {
	if r.Messages <= 0 {
		r.Messages = DefaultMessageCapacity
	}
	if r.Transcripts <= 0 {
		r.Transcripts = DefaultTranscriptCapacity
	}
	return r
}

// Room is the authoritative state of one chat room. It is owned by the room
// store and never shared; readers get RoomSummary / Member copies.
type Room struct {
	ID                string
	Name              string
	Tags              []string
	Locked            bool
	PasswordHash      string
	OwnerConnectionID string
	CreatedAt         time.Time

	memberOrder []string
	members     map[string]Member
	banned      mapset.Set[string]
	tagSet      mapset.Set[string]
	messages    *retention.Buffer[Message]
	transcripts *retention.Buffer[TranscriptItem]

	// zero while occupied
	emptiedAt time.Time
}

// RoomSummary is the projection handed to list views and broadcasts.
type RoomSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tags        []string  `json:"tags"`
	Locked      bool      `json:"locked"`
	MemberCount int       `json:"userCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRoom validates input and builds an empty room. A room starts out empty,
// so its deferred-deletion clock runs from createdAt until somebody joins: a
// room nobody ever joins is reclaimed once the empty-room grace period has
// passed since creation. Unset retention sizes fall back to
// DefaultRetention.
func NewRoom(id string, input NewRoomInput, now time.Time, hasher PasswordHasher, limits Retention) (*Room, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateRoomName(name); err != nil {
		return nil, validationError("%v", err)
	}

	tags, err := NormalizeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	limits = limits.OrDefault()

	var passwordHash string
	if input.Locked {
		if err := validatePassword(input.Password); err != nil {
			return nil, validationError("%v", err)
		}
		passwordHash, err = hasher.Hash(input.Password)
		if err != nil {
			return nil, err
		}
	}

	return &Room{
		ID:                id,
		Name:              name,
		Tags:              tags,
		Locked:            input.Locked,
		PasswordHash:      passwordHash,
		OwnerConnectionID: input.Owner,
		CreatedAt:         now,
		memberOrder:       make([]string, 0),
		members:           make(map[string]Member),
		banned:            mapset.NewThreadUnsafeSet[string](),
		tagSet:            mapset.NewThreadUnsafeSet(tags...),
		messages:          retention.New[Message](limits.Messages),
		transcripts:       retention.New[TranscriptItem](limits.Transcripts),
		emptiedAt:         now,
	}, nil
}

// NormalizeTags trims, lowercases and de-duplicates tags keeping first-seen order.
func NormalizeTags(raw []string) ([]string, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	tags := make([]string, 0, len(raw))

	for _, t := range raw {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" || seen.Contains(tag) {
			continue
		}
		if err := validateTag(tag); err != nil {
			return nil, validationError("%v", err)
		}
		seen.Add(tag)
		tags = append(tags, tag)
	}

	if len(tags) > MaxTags {
		return nil, validationError("too many tags (max %d)", MaxTags)
	}

	return tags, nil
}

func (r *Room) IsOwner(connectionID string) bool {
	return connectionID != "" && r.OwnerConnectionID == connectionID
}

func (r *Room) IsMember(connectionID string) bool {
	_, ok := r.members[connectionID]
	return ok
}

func (r *Room) FindMember(connectionID string) (Member, bool) {
	m, ok := r.members[connectionID]
	return m, ok
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

// Members returns the members in join order.
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.memberOrder))
	for _, id := range r.memberOrder {
		out = append(out, r.members[id])
	}
	return out
}

// AddMember inserts or refreshes a member and stops the deletion clock.
func (r *Room) AddMember(m Member) {
	if _, exists := r.members[m.ConnectionID]; !exists {
		r.memberOrder = append(r.memberOrder, m.ConnectionID)
	}
	r.members[m.ConnectionID] = m
	r.emptiedAt = time.Time{}
}

// RemoveMember drops a member, starting the deletion clock when the room empties.
func (r *Room) RemoveMember(connectionID string, now time.Time) (Member, bool) {
	m, ok := r.members[connectionID]
	if !ok {
		return Member{}, false
	}

	delete(r.members, connectionID)
	if idx := slices.Index(r.memberOrder, connectionID); idx >= 0 {
		r.memberOrder = slices.Delete(r.memberOrder, idx, idx+1)
	}

	if len(r.members) == 0 {
		r.emptiedAt = now
	}

	return m, true
}

func (r *Room) IsBanned(connectionID string) bool {
	return r.banned.Contains(connectionID)
}

// Ban records a permanent ban and evicts the connection if present.
func (r *Room) Ban(connectionID string, now time.Time) {
	r.banned.Add(connectionID)
	r.RemoveMember(connectionID, now)
}

// HasAnyTag reports whether the room carries at least one of tags.
func (r *Room) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if r.tagSet.Contains(t) {
			return true
		}
	}
	return false
}

func (r *Room) AppendMessage(m Message) {
	r.messages.Append(m)
}

func (r *Room) AppendTranscript(t TranscriptItem) {
	r.transcripts.Append(t)
}

func (r *Room) Messages() []Message {
	return r.messages.Snapshot()
}

func (r *Room) Transcripts() []TranscriptItem {
	return r.transcripts.Snapshot()
}

// Expired reports whether the room has been empty for at least grace.
func (r *Room) Expired(now time.Time, grace time.Duration) bool {
	if len(r.members) > 0 || r.emptiedAt.IsZero() {
		return false
	}
	return !now.Before(r.emptiedAt.Add(grace))
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Tags:        slices.Clone(r.Tags),
		Locked:      r.Locked,
		MemberCount: len(r.members),
		CreatedAt:   r.CreatedAt,
	}
}

package ws

// Inbound client events, one per engine operation.
const (
	CreateRoom       = "create_room"
	GetRooms         = "get_rooms"
	QuickJoin        = "quick_join"
	JoinRoom         = "join_room"
	LeaveRoom        = "leave_room"
	SendMessage      = "send_message"
	SpeechTranscript = "speech_transcript"
	KickUser         = "kick_user"
	BanUser          = "ban_user"
	GetRoomState     = "get_room_state"
	GetTags          = "get_tags"
	WebRTCSignal     = "webrtc_signal"
)

// Outbound events owned by the transport. Room events come from the engine.
const (
	Connected = "connected"
	Ack       = "ack"
)

package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Room            Category = "Room"
	WebSocket       Category = "WebSocket"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Room
	Lifecycle  SubCategory = "Lifecycle"
	Membership SubCategory = "Membership"
	Moderation SubCategory = "Moderation"
	Chat       SubCategory = "Chat"
	Janitor    SubCategory = "Janitor"

	// WebSocket
	Connection SubCategory = "Connection"
	Dispatch   SubCategory = "Dispatch"

	// RabbitMQ, MongoDB
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
	Insert  SubCategory = "Insert"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomID       ExtraKey = "RoomId"
	ConnectionID ExtraKey = "ConnectionId"
	AnonName     ExtraKey = "AnonName"
	EventType    ExtraKey = "EventType"
	MemberCount  ExtraKey = "MemberCount"
	RetryAfter   ExtraKey = "RetryAfter"
)

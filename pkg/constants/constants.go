package constants

import "time"

// Signaling message types. The names match the events the web client emits
// and listens for.
const (
	MessageWelcome          = "welcome"
	MessageJoinRoom         = "join-room"
	MessageLeaveRoom        = "leave-room"
	MessageAllUsers         = "all-users"
	MessageUserJoined       = "user-joined"
	MessageUserLeft         = "user-left"
	MessageUserDisconnected = "user-disconnected"
	MessageOffer            = "webrtc-offer"
	MessageAnswer           = "webrtc-answer"
	MessageCandidate        = "webrtc-candidate"
	MessageChat             = "chat-message"
)

// DefaultDisplayName is used for chat messages sent without a username.
const DefaultDisplayName = "Anonymous"

// WebSocket transport defaults
const (
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 64 * 1024 // SDP blobs with many candidates stay well below this
	DefaultReadBuffer     = 4 * 1024
	DefaultWriteBuffer    = 4 * 1024
	DefaultSendQueue      = 256
	DefaultHubQueue       = 1024
	DefaultLifecycleQueue = 512
)

const (
	DefaultRedisChannel    = "tutorconnect:rooms"
	DefaultStatsCacheTTL   = time.Second
	DefaultCallRetention   = 90 // days
	DefaultICETimeout      = 10 * time.Second
	DefaultDataChannelName = "chat"
)

// Call record statuses, mirroring the session statuses of the booking service.
const (
	CallStatusOngoing   = "ongoing"
	CallStatusCompleted = "completed"
)

// Environment keys
const (
	ENV_MODE                 = "MODE"
	ENV_ADDR                 = "ADDR"
	ENV_SERVER_NAME          = "SERVER_NAME"
	ENV_DB_DRIVER            = "DB_DRIVER"
	ENV_DSN                  = "DSN"
	ENV_REDIS_ADDR           = "REDIS_ADDR"
	ENV_REDIS_PASSWORD       = "REDIS_PASSWORD"
	ENV_REDIS_DB             = "REDIS_DB"
	ENV_REDIS_CHANNEL        = "REDIS_CHANNEL"
	ENV_WS_READ_BUFFER       = "WS_READ_BUFFER"
	ENV_WS_WRITE_BUFFER      = "WS_WRITE_BUFFER"
	ENV_WS_MAX_MESSAGE_SIZE  = "WS_MAX_MESSAGE_SIZE"
	ENV_WS_SEND_QUEUE        = "WS_SEND_QUEUE"
	ENV_WS_PONG_WAIT         = "WS_PONG_WAIT"
	ENV_HUB_QUEUE_SIZE       = "HUB_QUEUE_SIZE"
	ENV_LIFECYCLE_QUEUE_SIZE = "LIFECYCLE_QUEUE_SIZE"
	ENV_ALLOWED_ORIGINS      = "ALLOWED_ORIGINS"
	ENV_ICE_SERVERS_FILE     = "ICE_SERVERS_FILE"
	ENV_STATS_CACHE_TTL      = "STATS_CACHE_TTL"
	ENV_CALL_RETENTION_DAYS  = "CALL_RETENTION_DAYS"
)

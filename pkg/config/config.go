package config

import (
	"log"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/logger"
	"github.com/LingByte/TutorConnect/pkg/utils"
)

// ServerConfig holds HTTP server timeouts
type ServerConfig struct {
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// SignalConfig tunes the websocket transport and the hub queues
type SignalConfig struct {
	ReadBufferSize     int           `env:"WS_READ_BUFFER"`
	WriteBufferSize    int           `env:"WS_WRITE_BUFFER"`
	MaxMessageSize     int64         `env:"WS_MAX_MESSAGE_SIZE"`
	SendQueueSize      int           `env:"WS_SEND_QUEUE"`
	PongWait           time.Duration `env:"WS_PONG_WAIT"`
	HubQueueSize       int           `env:"HUB_QUEUE_SIZE"`
	LifecycleQueueSize int           `env:"LIFECYCLE_QUEUE_SIZE"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS"`
}

// RedisConfig is optional; an empty Addr disables the broker
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
	Channel  string `env:"REDIS_CHANNEL"`
}

var GlobalConfig *Config

// Config System common config
type Config struct {
	Server            ServerConfig
	Log               logger.LogConfig
	Signal            SignalConfig
	Redis             RedisConfig
	DBDriver          string        `env:"DB_DRIVER"`
	DSN               string        `env:"DSN"`
	Addr              string        `env:"ADDR"`
	Mode              string        `env:"MODE"`
	ServerName        string        `env:"SERVER_NAME"`
	ICEServersFile    string        `env:"ICE_SERVERS_FILE"`
	StatsCacheTTL     time.Duration `env:"STATS_CACHE_TTL"`
	CallRetentionDays int           `env:"CALL_RETENTION_DAYS"`
	SSLEnabled        bool          `env:"SSL_ENABLED"`
	SSLCertFile       string        `env:"SSL_CERT_FILE"`
	SSLKeyFile        string        `env:"SSL_KEY_FILE"`
}

func Load() error {
	// a missing .env is fine, every key has a default
	mode := utils.GetStringOrDefault(constants.ENV_MODE, "development")
	if err := utils.LoadEnv(mode); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	GlobalConfig = &Config{
		Server: ServerConfig{
			ReadTimeout:  utils.GetDurationOrDefault("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: utils.GetDurationOrDefault("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  utils.GetDurationOrDefault("IDLE_TIMEOUT", 120*time.Second),
		},
		Log: logger.LogConfig{
			Level:      utils.GetStringOrDefault("LOG_LEVEL", "info"),
			Filename:   utils.GetStringOrDefault("LOG_FILENAME", "./logs/signal.log"),
			MaxSize:    utils.GetIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     utils.GetIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: utils.GetIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      utils.GetBoolOrDefault("LOG_DAILY", true),
		},
		Signal: SignalConfig{
			ReadBufferSize:     utils.GetIntOrDefault(constants.ENV_WS_READ_BUFFER, constants.DefaultReadBuffer),
			WriteBufferSize:    utils.GetIntOrDefault(constants.ENV_WS_WRITE_BUFFER, constants.DefaultWriteBuffer),
			MaxMessageSize:     int64(utils.GetIntOrDefault(constants.ENV_WS_MAX_MESSAGE_SIZE, constants.DefaultMaxMessageSize)),
			SendQueueSize:      utils.GetIntOrDefault(constants.ENV_WS_SEND_QUEUE, constants.DefaultSendQueue),
			PongWait:           utils.GetDurationOrDefault(constants.ENV_WS_PONG_WAIT, constants.DefaultPongWait),
			HubQueueSize:       utils.GetIntOrDefault(constants.ENV_HUB_QUEUE_SIZE, constants.DefaultHubQueue),
			LifecycleQueueSize: utils.GetIntOrDefault(constants.ENV_LIFECYCLE_QUEUE_SIZE, constants.DefaultLifecycleQueue),
			AllowedOrigins:     utils.GetListOrDefault(constants.ENV_ALLOWED_ORIGINS, nil),
		},
		Redis: RedisConfig{
			Addr:     utils.GetStringOrDefault(constants.ENV_REDIS_ADDR, ""),
			Password: utils.GetStringOrDefault(constants.ENV_REDIS_PASSWORD, ""),
			DB:       utils.GetIntOrDefault(constants.ENV_REDIS_DB, 0),
			Channel:  utils.GetStringOrDefault(constants.ENV_REDIS_CHANNEL, constants.DefaultRedisChannel),
		},
		Mode:              mode,
		DBDriver:          utils.GetStringOrDefault(constants.ENV_DB_DRIVER, "sqlite"),
		DSN:               utils.GetStringOrDefault(constants.ENV_DSN, "./tutorconnect.db"),
		Addr:              utils.GetStringOrDefault(constants.ENV_ADDR, ":5000"),
		ServerName:        utils.GetStringOrDefault(constants.ENV_SERVER_NAME, "TutorConnect"),
		ICEServersFile:    utils.GetStringOrDefault(constants.ENV_ICE_SERVERS_FILE, ""),
		StatsCacheTTL:     utils.GetDurationOrDefault(constants.ENV_STATS_CACHE_TTL, constants.DefaultStatsCacheTTL),
		CallRetentionDays: utils.GetIntOrDefault(constants.ENV_CALL_RETENTION_DAYS, constants.DefaultCallRetention),
		SSLEnabled:        utils.GetBoolOrDefault("SSL_ENABLED", false),
		SSLCertFile:       utils.GetStringOrDefault("SSL_CERT_FILE", ""),
		SSLKeyFile:        utils.GetStringOrDefault("SSL_KEY_FILE", ""),
	}
	return nil
}

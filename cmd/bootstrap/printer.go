package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/LingByte/TutorConnect/pkg/config"
	"github.com/LingByte/TutorConnect/pkg/logger"
	"go.uber.org/zap"
)

// LogConfigInfo Print global configuration information
func LogConfigInfo() {
	cfg := config.GlobalConfig
	logger.Info("system config load finished")

	logger.Info("base config",
		zap.String("server_name", cfg.ServerName),
		zap.String("mode", cfg.Mode),
		zap.String("addr", cfg.Addr),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("dsn", redactDSN(cfg.DSN)),
	)

	logger.Info("signal config",
		zap.Int("ws_read_buffer", cfg.Signal.ReadBufferSize),
		zap.Int("ws_write_buffer", cfg.Signal.WriteBufferSize),
		zap.Int64("ws_max_message_size", cfg.Signal.MaxMessageSize),
		zap.Int("ws_send_queue", cfg.Signal.SendQueueSize),
		zap.Duration("ws_pong_wait", cfg.Signal.PongWait),
		zap.Int("hub_queue_size", cfg.Signal.HubQueueSize),
		zap.Int("lifecycle_queue_size", cfg.Signal.LifecycleQueueSize),
		zap.Strings("allowed_origins", cfg.Signal.AllowedOrigins),
	)

	logger.Info("redis config",
		zap.Bool("enabled", cfg.Redis.Addr != ""),
		zap.String("addr", cfg.Redis.Addr),
		zap.String("channel", cfg.Redis.Channel),
	)

	logger.Info("log config",
		zap.String("log_level", cfg.Log.Level),
		zap.String("log_filename", cfg.Log.Filename),
		zap.Int("log_max_size", cfg.Log.MaxSize),
		zap.Int("log_max_age", cfg.Log.MaxAge),
		zap.Int("log_max_backups", cfg.Log.MaxBackups),
	)
}

// redactDSN hides the password part of user:password@host style DSNs.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	scheme := ""
	if i := strings.Index(creds, "://"); i >= 0 {
		scheme, creds = creds[:i+3], creds[i+3:]
	}
	user, _, found := strings.Cut(creds, ":")
	if !found {
		return dsn
	}
	return scheme + user + ":***" + dsn[at:]
}

// EnsureBannerFile writes a plain banner when filename is missing.
func EnsureBannerFile(filename string, text string) error {
	_, err := os.Stat(filename)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if text == "" {
		text = "TutorConnect"
	}
	banner := fmt.Sprintf("=== %s ===\nreal-time room signaling\n", text)
	return os.WriteFile(filename, []byte(banner), 0o644)
}

// PrintBannerFromFile Read file and print, auto-generate if file doesn't exist
func PrintBannerFromFile(filename string, defaultText string) error {
	if err := EnsureBannerFile(filename, defaultText); err != nil {
		return fmt.Errorf("failed to ensure banner file: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")

	colors := []string{
		"\x1b[38;5;45m",
		"\x1b[38;5;51m",
		"\x1b[38;5;87m",
		"\x1b[38;5;123m",
		"\x1b[38;5;159m",
		"\x1b[38;5;195m",
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		color := colors[i%len(colors)]
		fmt.Println(color + line + "\x1b[0m")
	}
	return nil
}

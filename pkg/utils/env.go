package utils

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv loads .env and then .env.<mode> (the latter wins). Missing files are
// reported only when neither exists.
func LoadEnv(mode string) error {
	files := []string{".env"}
	if mode != "" {
		files = append(files, ".env."+mode)
	}
	var lastErr error
	loaded := 0
	for i := len(files) - 1; i >= 0; i-- {
		// godotenv.Load never overrides, so load the most specific file first
		if err := godotenv.Load(files[i]); err != nil {
			lastErr = err
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return lastErr
	}
	return nil
}

// GetEnv returns the trimmed value of key or "".
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetStringOrDefault(key, defaultValue string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return defaultValue
}

func GetIntOrDefault(key string, defaultValue int) int {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func GetBoolOrDefault(key string, defaultValue bool) bool {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetDurationOrDefault accepts Go durations ("30s") or plain seconds ("30").
func GetDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetListOrDefault splits a comma separated value, dropping empty items.
func GetListOrDefault(key string, defaultValue []string) []string {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

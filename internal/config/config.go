// Package config loads the message store's runtime settings, following
// the teacher's viper-based precedence walk (internal/config/config.go):
// environment variables (MSGSTORE_*) > config file > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call it once at
// process startup before reading any setting.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD looking for a .msgstore/config.yaml, so
	//    commands work from any subdirectory of a deployment checkout.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".msgstore", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory.
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(configDir, "msgstore", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("MSGSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.sqlite_path", "msgstore.db")
	v.SetDefault("cache.driver", "memory") // "memory" or "redis"
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.recency_limit", 2000)
	v.SetDefault("listing.default_max_results", 1000)
	v.SetDefault("log.path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
		// fsnotify-backed reload: later getter calls see the file's new
		// values. The change callback does nothing, so values already
		// handed out at startup (the recency limit given to the cache,
		// the logger's sink) keep their startup values until a restart.
		v.OnConfigChange(func(fsnotify.Event) {})
		v.WatchConfig()
	}

	return nil
}

// SQLitePath returns the path to the authoritative object store's backing
// database file.
func SQLitePath() string { return getString("store.sqlite_path") }

// CacheDriver returns "memory" or "redis".
func CacheDriver() string { return getString("cache.driver") }

// RedisAddr returns the Redis server address for CacheDriver()=="redis".
func RedisAddr() string { return getString("cache.redis_addr") }

// RedisDB returns the Redis logical DB index.
func RedisDB() int { return getInt("cache.redis_db") }

// RecencyLimit returns T, the batch info cache's recency-set cap.
func RecencyLimit() int64 { return int64(getInt("cache.recency_limit")) }

// DefaultMaxResults returns the listing.default_max_results setting. The
// store's listings do not read it; they fall back to
// authority.DefaultMaxResults (1000).
func DefaultMaxResults() int { return getInt("listing.default_max_results") }

// LogPath returns the rotating log file path, or "" for stderr-only.
func LogPath() string { return getString("log.path") }

// LogMaxSizeMB, LogMaxBackups, LogMaxAgeDays configure lumberjack rotation.
func LogMaxSizeMB() int  { return getInt("log.max_size_mb") }
func LogMaxBackups() int { return getInt("log.max_backups") }
func LogMaxAgeDays() int { return getInt("log.max_age_days") }

func getString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func getInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

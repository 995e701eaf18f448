package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string
	Port string
}

// TLSConfig holds TLS settings
type TLSConfig struct {
	Enabled    bool
	CertFile   string
	KeyFile    string
	MinVersion string
}

// RoomConfig holds room lifecycle settings
type RoomConfig struct {
	MaxConnections int
	SweepInterval  time.Duration
	IdleThreshold  time.Duration
}

// SocketConfig holds per-connection WebSocket settings
type SocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DatabaseConfig holds the session journal database settings
type DatabaseConfig struct {
	Path string
}

// Config is the full server configuration
type Config struct {
	Server   ServerConfig
	TLS      TLSConfig
	Rooms    RoomConfig
	Socket   SocketConfig
	Database DatabaseConfig
}

// LoadConfig reads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: getEnv("PORT", "8080"),
		},
		TLS: TLSConfig{
			Enabled:    getEnvBool("TLS_ENABLED", false),
			CertFile:   getEnv("TLS_CERT_FILE", ""),
			KeyFile:    getEnv("TLS_KEY_FILE", ""),
			MinVersion: getEnv("TLS_MIN_VERSION", "1.2"),
		},
		Rooms: RoomConfig{
			MaxConnections: getEnvInt("MAX_CONNECTIONS", 1000),
			SweepInterval:  getEnvDuration("ROOM_SWEEP_INTERVAL", 5*time.Minute),
			IdleThreshold:  getEnvDuration("ROOM_IDLE_THRESHOLD", 12*time.Hour),
		},
		Socket: SocketConfig{
			WriteWait:      getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			PongWait:       getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			SendBuffer:     getEnvInt("WS_SEND_BUFFER", 256),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/stagesync.db"),
		},
	}
}

// PingPeriod is how often pings go out; must be shorter than PongWait
func (s SocketConfig) PingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

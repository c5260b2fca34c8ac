package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Mirror backends accepted by MIRROR_BACKEND.
const (
	MirrorDynamo = "dynamo"
	MirrorRedis  = "redis"
	MirrorMemory = "memory"
	MirrorPebble = "pebble"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	MattermostURL   string
	MattermostToken string
	MarkerEmoji     string

	MirrorBackend  string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	RedisAddr      string
	RedisKeyPrefix string
	PebblePath     string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	AllowedOrigins    []string // CORS allowed origins

	ReactionRateLimit float64 // reaction writes per second
	ReactionBurst     int
	WSReconnectMax    time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Markers string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MattermostURL:   strings.TrimRight(getEnv("MATTERMOST_URL", "http://localhost:8065"), "/"),
		MattermostToken: getEnv("MATTERMOST_TOKEN", ""),
		MarkerEmoji:     getEnv("MARKER_EMOJI", "eyes"),

		MirrorBackend:  strings.ToLower(getEnv("MIRROR_BACKEND", MirrorDynamo)),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Markers: getEnv("DYNAMO_TABLE_MARKERS", "read_markers"),
		},
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "read-marker:"),
		PebblePath:     getEnv("PEBBLE_PATH", "./data/markers"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 30)) * 24 * time.Hour,
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		ReactionRateLimit: getEnvFloat("REACTION_RATE_LIMIT", 5),
		ReactionBurst:     getEnvInt("REACTION_BURST", 10),
		WSReconnectMax:    time.Duration(getEnvInt("WS_RECONNECT_MAX_SECONDS", 60)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

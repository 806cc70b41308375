package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string
	LogFile  string

	// Bluesky account
	BlueskyHandle string
	BlueskyPAT    string
	BlueskyPDSURL string
	HTTPTimeout   time.Duration

	// Table sources: local .xlsx/.csv path, s3://bucket/key or gsheet://id/sheet
	QueueSource string
	ReplySource string

	// Reply pass tuning
	ReplyWindow   time.Duration
	ReplyMinLikes int
	FeedPageSize  int
	FeedMaxPages  int
	FeedFilter    string
	LikesPageSize int

	// Google Sheets service account (file path or inline JSON)
	GoogleCredentials string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	MetricsPushgatewayURL string
	MetricsJob            string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "bot.log"),

		BlueskyHandle: strings.TrimSpace(getEnv("BLUESKY_HANDLE", "")),
		BlueskyPAT:    strings.TrimSpace(getEnv("BLUESKY_PAT", "")),
		BlueskyPDSURL: getEnv("BLUESKY_PDS_URL", "https://bsky.social"),
		HTTPTimeout:   getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		QueueSource: getEnv("QUEUE_SOURCE", "posts.xlsx"),
		ReplySource: getEnv("REPLY_SOURCE", "reply_texts.xlsx"),

		ReplyWindow:   getEnvAsDuration("REPLY_WINDOW", 10*24*time.Hour),
		ReplyMinLikes: getEnvAsInt("REPLY_MIN_LIKES", 1),
		FeedPageSize:  getEnvAsInt("FEED_PAGE_SIZE", 100),
		FeedMaxPages:  getEnvAsInt("FEED_MAX_PAGES", 1),
		FeedFilter:    getEnv("FEED_FILTER", "posts_no_replies"),
		LikesPageSize: getEnvAsInt("LIKES_PAGE_SIZE", 20),

		GoogleCredentials: getEnv("GOOGLE_CREDENTIALS", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		MetricsPushgatewayURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),
		MetricsJob:            getEnv("METRICS_JOB", "blueskybot"),
	}
}

// HasCredentials reports whether both account credentials are present.
func (c *Config) HasCredentials() bool {
	return c.BlueskyHandle != "" && c.BlueskyPAT != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

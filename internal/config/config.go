package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	// Change-feed poller.
	PollInterval time.Duration
	BatchSize    int
	FeedKeep     time.Duration

	// Rate limits for the public surface and the capability URLs.
	IPPerMinute  int
	IPBurst      int
	KeyPerMinute int
	KeyBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:         port,
		DatabaseURL:  os.Getenv("DB_DSN"),
		PollInterval: readDurationSeconds("FEED_POLL_SECONDS", 1),
		BatchSize:    readInt("FEED_BATCH_SIZE", 100),
		FeedKeep:     readDurationSeconds("FEED_KEEP_SECONDS", 3600),
		IPPerMinute:  readInt("RATE_LIMIT_IP_PER_MINUTE", 300),
		IPBurst:      readInt("RATE_LIMIT_IP_BURST", 60),
		KeyPerMinute: readInt("RATE_LIMIT_KEY_PER_MINUTE", 600),
		KeyBurst:     readInt("RATE_LIMIT_KEY_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

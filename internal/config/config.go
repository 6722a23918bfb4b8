package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vytor/studyflash/internal/models"
)

type Config struct {
	Addr                string
	DBPath              string
	LogLevel            string
	LogColors           bool
	SnapshotWorkerCount int
	SnapshotQueueSize   int
	SnapshotRetention   int
	QuizTags            []string
	CORSOrigins         []string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                envOr("ADDR", ":8080"),
		DBPath:              envOr("DB_PATH", "file:studyflash.db"),
		LogLevel:            envOr("LOG_LEVEL", "INFO"),
		LogColors:           envBoolOr("LOG_COLORS", true),
		SnapshotWorkerCount: envIntOr("SNAPSHOT_WORKER_COUNT", 1),
		SnapshotQueueSize:   envIntOr("SNAPSHOT_QUEUE_SIZE", 16),
		SnapshotRetention:   envIntOr("SNAPSHOT_RETENTION", 10),
		QuizTags:            envListOr("QUIZ_TAGS", []string{"quiz"}),
		CORSOrigins:         envListOr("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SnapshotWorkerCount < 1 {
		return fmt.Errorf("SNAPSHOT_WORKER_COUNT must be at least 1, got %d", c.SnapshotWorkerCount)
	}
	if c.SnapshotQueueSize < 1 {
		return fmt.Errorf("SNAPSHOT_QUEUE_SIZE must be at least 1, got %d", c.SnapshotQueueSize)
	}
	if c.SnapshotRetention < 1 {
		return fmt.Errorf("SNAPSHOT_RETENTION must be at least 1, got %d", c.SnapshotRetention)
	}
	if _, err := c.EligibleTags(); err != nil {
		return fmt.Errorf("QUIZ_TAGS: %w", err)
	}
	return nil
}

// EligibleTags parses QuizTags into topic tags.
func (c Config) EligibleTags() ([]models.TopicTag, error) {
	if len(c.QuizTags) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	tags := make([]models.TopicTag, 0, len(c.QuizTags))
	for _, name := range c.QuizTags {
		tag, err := models.ParseTopicTag(name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid value for %s=%q, using default %t", key, v, def)
	}
	return def
}

func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

type Config struct {
	// HTTP Server
	Port string

	// Deployment variant: local (single user, SQLite slot) or cloud
	// (multi user, PostgreSQL + auth).
	Mode string

	// Local variant
	SQLiteDBPath string
	SlotKey      string
	SaveDebounce time.Duration

	// Cloud variant
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration

	// AMQP mutation event stream (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (worker only)
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),
		Mode: getEnv("FINTRACK_MODE", ModeLocal),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		SlotKey:      getEnv("SLOT_KEY", "expense-tracker-data"),
		SaveDebounce: getEnvDuration("SAVE_DEBOUNCE", 300*time.Millisecond),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		SessionTTL:  getEnvDuration("SESSION_TTL", 168*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Mode {
	case ModeLocal:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty in local mode")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
		if c.SlotKey == "" {
			errors = append(errors, "slot key cannot be empty in local mode")
		}
		if c.SaveDebounce < 0 || c.SaveDebounce > time.Minute {
			errors = append(errors, fmt.Sprintf("invalid save debounce %v: must be between 0 and 1 minute", c.SaveDebounce))
		}
	case ModeCloud:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required in cloud mode")
		}
		if c.JWTSecret == "" {
			errors = append(errors, "JWT_SECRET is required in cloud mode")
		}
		if c.SessionTTL < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mode '%s': must be one of [%s %s]", c.Mode, ModeLocal, ModeCloud))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateMirror checks the additional settings the sheets mirror worker needs.
func (c *Config) ValidateMirror() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the mirror worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for the mirror worker")
	}
	if c.GoogleOAuthClientJSON == "" {
		errors = append(errors, "GOOGLE_OAUTH_CLIENT_JSON is required for the mirror worker")
	}
	if c.GoogleOAuthTokenJSON == "" {
		errors = append(errors, "GOOGLE_OAUTH_TOKEN_JSON is required for the mirror worker")
	}

	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

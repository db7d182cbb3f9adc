package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンド
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// formTypeが未知の場合の扱い
const (
	FormTypePolicyClient = "client"
	FormTypePolicyReject = "reject"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend string
	DatabaseURL    string
	SchemaStrict   bool
	SheetSeedDir   string // memoryバックエンドの初期データ（<テーブル名>.csv）

	// Options
	OptionsFile string

	// Voice call API
	RetellAPIKey         string
	RetellEndpoint       string
	RetellDefaultAgentID string
	RetellTimeout        time.Duration

	// Submission
	UnknownFormTypePolicy    string
	DiagnosticPayloadEnabled bool
	MaxBodyBytes             int64

	// Rate Limit（件/分/IP。0で無効）
	RateLimitSubmissions int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数の未設定や不正な列挙値はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", BackendPostgres))
	switch cfg.StorageBackend {
	case BackendPostgres, BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.StorageBackend))
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == BackendPostgres && cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
	}

	cfg.UnknownFormTypePolicy = strings.ToLower(getEnvString("UNKNOWN_FORM_TYPE_POLICY", FormTypePolicyClient))
	switch cfg.UnknownFormTypePolicy {
	case FormTypePolicyClient, FormTypePolicyReject:
	default:
		problems = append(problems, fmt.Sprintf("UNKNOWN_FORM_TYPE_POLICY must be %q or %q, got %q", FormTypePolicyClient, FormTypePolicyReject, cfg.UnknownFormTypePolicy))
	}

	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	// Optional fields with defaults
	cfg.SchemaStrict = getEnvBool("SCHEMA_STRICT", true)
	cfg.SheetSeedDir = getEnvString("SHEET_SEED_DIR", "")
	cfg.OptionsFile = getEnvString("OPTIONS_FILE", "")
	cfg.RetellAPIKey = os.Getenv("RETELL_API_KEY")
	cfg.RetellEndpoint = getEnvString("RETELL_ENDPOINT", "")
	cfg.RetellDefaultAgentID = getEnvString("RETELL_DEFAULT_AGENT_ID", "")
	cfg.RetellTimeout = getEnvDuration("RETELL_TIMEOUT", 10*time.Second)
	cfg.DiagnosticPayloadEnabled = getEnvBool("DIAGNOSTIC_PAYLOAD_ENABLED", true)
	cfg.MaxBodyBytes = getEnvInt64("MAX_BODY_BYTES", 1<<20)
	cfg.RateLimitSubmissions = getEnvInt("RATE_LIMIT_SUBMISSIONS", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

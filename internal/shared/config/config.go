package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	DBAutoMigrate   bool
	CORSAllowOrigin []string
	LogLevel        string

	OCRBackend           string
	DocAIProjectID       string
	DocAILocation        string
	DocAIProcessorID     string
	DocAICredentialsFile string
	OCRTimeout           time.Duration
	RulesFile            string

	EventsPollInterval time.Duration
	MaxUploadBytes     int64
	UploadRatePerSec   float64
	UploadRateBurst    int

	ArchiveStore  string
	LocalStoreDir string
	AWSRegion     string
	S3Bucket      string
	S3Prefix      string
	SSEKMSKeyID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		DatabaseURL:     dbURL,
		DBAutoMigrate:   getBool("DB_AUTO_MIGRATE", true),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "*")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		OCRBackend:           strings.ToLower(getEnv("OCR_BACKEND", "documentai")),
		DocAIProjectID:       getEnv("DOCAI_PROJECT_ID", ""),
		DocAILocation:        getEnv("DOCAI_LOCATION", "us"),
		DocAIProcessorID:     getEnv("DOCAI_PROCESSOR_ID", ""),
		DocAICredentialsFile: getEnv("DOCAI_CREDENTIALS_FILE", ""),
		OCRTimeout:           getDuration("OCR_TIMEOUT", 60*time.Second),
		RulesFile:            getEnv("EXTRACTION_RULES_FILE", ""),

		EventsPollInterval: getDuration("EVENTS_POLL_INTERVAL", time.Second),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 20<<20)),
		UploadRatePerSec:   getFloat("UPLOAD_RATE_PER_SEC", 2),
		UploadRateBurst:    getInt("UPLOAD_RATE_BURST", 10),

		ArchiveStore:  normalizeStoreType(getEnv("ARCHIVE_STORE", "none")),
		LocalStoreDir: getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:     getEnv("AWS_REGION", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Prefix:      getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:   getEnv("SSE_KMS_KEY_ID", ""),
	}
}

// IsDevLike reports whether missing infrastructure may be replaced by local
// fallbacks (in-memory store, local text extraction).
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool %q, using %v", key, raw, def)
		return def
	}
	return v
}

// getDuration accepts Go durations ("1500ms") or plain seconds ("60").
func getDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "local":
		return "local"
	default:
		return "none"
	}
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	LogLevel           string
	MaxUploadSizeBytes int64
	DefaultLocale      string

	// Pending mapping-confirmation sessions are held in memory for this long.
	ImportSessionTTL time.Duration

	// Optional LLM column-mapping escalation. Off by default; the import
	// pipeline is fully functional without it.
	LLMMappingEnabled bool
	LLMMappingModel   string
	LLMMappingTimeout time.Duration
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en-US"),
		ImportSessionTTL:   getEnvAsDuration("IMPORT_SESSION_TTL", 30*time.Minute),
		LLMMappingEnabled:  getEnvAsBool("LLM_MAPPING_ENABLED", false),
		LLMMappingModel:    getEnv("LLM_MAPPING_MODEL", "gemini-2.5-flash"),
		LLMMappingTimeout:  getEnvAsDuration("LLM_MAPPING_TIMEOUT", 10*time.Second),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DefaultLocale=%s, LLMMapping=%t",
		Cfg.Port, Cfg.LogLevel, Cfg.DefaultLocale, Cfg.LLMMappingEnabled)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

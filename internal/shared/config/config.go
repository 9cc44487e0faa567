package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	TrustedProxies  []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	HistoryBackend string
	HistoryDir     string
	SQLitePath     string
	DatabaseURL    string

	PlantNetAPIKey  string
	PlantNetURL     string
	PlantNetProject string
	PlantNetLang    string

	KindwiseAPIKey   string
	KindwiseURL      string
	KindwiseLanguage string

	FallbackDelay      time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from an optional YAML file and environment variables.
//
// Precedence (highest first): environment, YAML file at PLANTDOC_CONFIG (or ./plantdoc.yaml), defaults.
// Environment keys map onto YAML keys by splitting on the first underscore:
// PLANTNET_API_KEY -> plantnet.api_key, PORT -> port.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	k := koanf.New(".")

	path := strings.TrimSpace(os.Getenv("PLANTDOC_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = "plantdoc.yaml"
	}
	if err := loadYAML(k, path, explicit); err != nil {
		return Config{}, err
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	return fromKoanf(k), nil
}

func loadYAML(k *koanf.Koanf, path string, required bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func fromKoanf(k *koanf.Koanf) Config {
	return Config{
		Port:            get(k, "port", "8080"),
		Env:             normalizeEnv(get(k, "env", "dev")),
		LogLevel:        get(k, "log.level", "info"),
		CORSAllowOrigin: splitAndTrim(get(k, "cors.allow_origins", "http://localhost:8081")),
		TrustedProxies:  splitAndTrim(get(k, "trusted.proxies", "")),

		ObjectStoreType: normalizeStoreType(get(k, "object.store", "local")),
		LocalStoreDir:   get(k, "local.store_dir", "./data/images"),
		AWSRegion:       get(k, "aws.region", ""),
		S3Bucket:        get(k, "s3.bucket", ""),
		S3Prefix:        get(k, "s3.prefix", ""),
		SSEKMSKeyID:     get(k, "sse.kms_key_id", ""),

		HistoryBackend: normalizeHistoryBackend(get(k, "history.backend", "sqlite")),
		HistoryDir:     get(k, "history.dir", "./data/history"),
		SQLitePath:     get(k, "sqlite.path", "./data/plantdoc.db"),
		DatabaseURL:    get(k, "database.url", ""),

		PlantNetAPIKey:  get(k, "plantnet.api_key", ""),
		PlantNetURL:     get(k, "plantnet.url", "https://my-api.plantnet.org/v2/identify"),
		PlantNetProject: get(k, "plantnet.project", "all"),
		PlantNetLang:    get(k, "plantnet.lang", "pt"),

		KindwiseAPIKey:   get(k, "kindwise.api_key", ""),
		KindwiseURL:      get(k, "kindwise.url", "https://crop.kindwise.com/api/v1/identification"),
		KindwiseLanguage: get(k, "kindwise.language", "pt"),

		FallbackDelay:      getDuration(k, "fallback.delay", 2*time.Second),
		RateLimitPerMinute: getInt(k, "ratelimit.per_minute", 30),
		RateLimitBurst:     getInt(k, "ratelimit.burst", 5),
	}
}

func get(k *koanf.Koanf, key, def string) string {
	if val := strings.TrimSpace(k.String(key)); val != "" {
		return val
	}
	return def
}

func getInt(k *koanf.Koanf, key string, def int) int {
	raw := get(k, key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func getDuration(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	raw := get(k, key, "")
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
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
	default:
		return "local"
	}
}

func normalizeHistoryBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory":
		return "memory"
	case "file", "json":
		return "file"
	case "postgres", "pg":
		return "postgres"
	default:
		return "sqlite"
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	CORSOrigins []string

	StorageBackend string
	GeoBackend     string
	LockBackend    string

	MongoURI string
	MongoDB  string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisTLS       bool
	RedisKeyPrefix string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaClientID      string
	EventSource        string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	IdempotencyTTL time.Duration
	LockTTL        time.Duration
	LockWait       time.Duration

	JWTSecret string
	JWTIssuer string

	GeocoderURL     string
	GeocoderAPIKey  string
	GeocoderTimeout time.Duration

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then parses
// configuration from the environment. Variables already set win over the file.
func Load() (Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		GeoBackend:       strings.ToLower(os.Getenv("GEO_BACKEND")),
		LockBackend:      strings.ToLower(getEnv("LOCK_BACKEND", BackendMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "staybook"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisKeyPrefix:   getEnv("REDIS_KEY_PREFIX", "staybook:"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaClientID:    getEnv("KAFKA_CLIENT_ID", "staybook"),
		EventSource:      getEnv("EVENT_SOURCE", "app://staybook"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		GeocoderURL:      getEnv("GEOCODER_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		GeocoderAPIKey:   os.Getenv("GEOCODER_API_KEY"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3PublicEndpoint: getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "staybook-images"),
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisTLS, err = parseBoolEnv("REDIS_TLS", false); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"LOCK_TTL", 30 * time.Second, &cfg.LockTTL},
		{"LOCK_WAIT", 5 * time.Second, &cfg.LockWait},
		{"GEOCODER_TIMEOUT", 5 * time.Second, &cfg.GeocoderTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = parseDurationEnv(d.key, d.def); err != nil {
			return Config{}, err
		}
	}
	for _, raw := range splitList(getEnv("RETRY_BACKOFF", "1s,5s,30s")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.GeoBackend == "" {
		cfg.GeoBackend = BackendMemory
		if cfg.StorageBackend == BackendMongo {
			cfg.GeoBackend = BackendMongo
		}
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.GeoBackend {
	case BackendRedis:
	case BackendMemory:
		// Stay documents do not carry coordinates, so a process-local index
		// would lose every persisted stay on restart.
		if c.StorageBackend == BackendMongo {
			return fmt.Errorf("GEO_BACKEND=memory cannot be combined with STORAGE_BACKEND=mongo")
		}
	case BackendMongo:
		if c.StorageBackend != BackendMongo {
			return fmt.Errorf("GEO_BACKEND=mongo requires STORAGE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("invalid GEO_BACKEND %q", c.GeoBackend)
	}
	if c.LockBackend != BackendMemory && c.LockBackend != BackendRedis {
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.LockBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LockTTL <= c.LockWait && c.LockBackend == BackendRedis {
		return fmt.Errorf("LOCK_TTL must exceed LOCK_WAIT")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.GeoBackend == BackendRedis || c.LockBackend == BackendRedis
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}

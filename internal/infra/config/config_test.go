package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "s"})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != BackendMemory || cfg.GeoBackend != BackendMemory || cfg.LockBackend != BackendMemory {
		t.Fatalf("unexpected backends %+v", cfg)
	}
	if cfg.LockWait != 5*time.Second || cfg.IdempotencyTTL != 168*time.Hour {
		t.Fatalf("unexpected durations %v %v", cfg.LockWait, cfg.IdempotencyTTL)
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[2] != 30*time.Second {
		t.Fatalf("unexpected backoff %v", cfg.RetryBackoff)
	}
	if cfg.UsesRedis() {
		t.Fatalf("memory config should not need redis")
	}
}

func TestLoadGeoFollowsMongoStorage(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "s", "STORAGE_BACKEND": "mongo", "MONGO_URI": "mongodb://localhost"})
	t.Setenv("GEO_BACKEND", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeoBackend != BackendMongo {
		t.Fatalf("geo backend = %q, want mongo", cfg.GeoBackend)
	}
	if cfg.UsesRedis() {
		t.Fatalf("mongo geo should not need redis")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"no secret", map[string]string{}, "JWT_SECRET"},
		{"mongo without uri", map[string]string{"JWT_SECRET": "s", "STORAGE_BACKEND": "mongo"}, "MONGO_URI"},
		{"bad backend", map[string]string{"JWT_SECRET": "s", "GEO_BACKEND": "elastic"}, "GEO_BACKEND"},
		{"bad duration", map[string]string{"JWT_SECRET": "s", "LOCK_WAIT": "soon"}, "LOCK_WAIT"},
		{"bad bool", map[string]string{"JWT_SECRET": "s", "S3_USE_SSL": "maybe"}, "S3_USE_SSL"},
		{"memory geo with mongo", map[string]string{"JWT_SECRET": "s", "STORAGE_BACKEND": "mongo", "MONGO_URI": "mongodb://x", "GEO_BACKEND": "memory"}, "GEO_BACKEND=memory"},
		{"mongo geo without mongo", map[string]string{"JWT_SECRET": "s", "GEO_BACKEND": "mongo"}, "STORAGE_BACKEND=mongo"},
		{"bad lock backend", map[string]string{"JWT_SECRET": "s", "LOCK_BACKEND": "etcd"}, "LOCK_BACKEND"},
		{"lock ttl", map[string]string{"JWT_SECRET": "s", "LOCK_BACKEND": "redis", "LOCK_TTL": "1s", "LOCK_WAIT": "2s"}, "LOCK_TTL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			if _, ok := tc.env["JWT_SECRET"]; !ok {
				t.Setenv("JWT_SECRET", "")
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "JWT_SECRET=from-file\nGEO_BACKEND=redis\nKAFKA_BROKERS=a:9092, b:9092\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	// godotenv does not override variables that are already set.
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("GEO_BACKEND", "")
	os.Unsetenv("GEO_BACKEND")
	t.Setenv("KAFKA_BROKERS", "")
	os.Unsetenv("KAFKA_BROKERS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-file" || cfg.GeoBackend != BackendRedis {
		t.Fatalf("env file not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.UsesRedis() {
		t.Fatalf("redis geo should require redis")
	}
}

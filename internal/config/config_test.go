package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_JWT_SECRET": "0123456789abcdef0123",
		"MONGO_URI":       "mongodb://localhost:27017",
	}
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Store:   StoreConfig{Driver: StoreMemory, MaxConns: 20, MinConns: 2},
		Import:  ImportConfig{MaxFileSize: 1, MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute},
		Rate:    RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Auth:    AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour, BcryptCost: 10, SessionDriver: SessionMemory},
		Archive: ArchiveConfig{Driver: ArchiveNone},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(envMap(baseEnv()))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Store.Driver != StoreMongo {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, StoreMongo)
	}
	if cfg.Store.MongoDatabase != "inventory" {
		t.Errorf("Store.MongoDatabase = %q, want %q", cfg.Store.MongoDatabase, "inventory")
	}
	if cfg.Import.MaxConcurrent != 2 {
		t.Errorf("Import.MaxConcurrent = %d, want %d", cfg.Import.MaxConcurrent, 2)
	}
	if cfg.Import.ResultRetention != 5*time.Minute {
		t.Errorf("Import.ResultRetention = %v, want %v", cfg.Import.ResultRetention, 5*time.Minute)
	}
	if cfg.Auth.SessionDriver != SessionMemory {
		t.Errorf("Auth.SessionDriver = %q, want %q", cfg.Auth.SessionDriver, SessionMemory)
	}
	if cfg.Archive.Driver != ArchiveNone {
		t.Errorf("Archive.Driver = %q, want %q", cfg.Archive.Driver, ArchiveNone)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	env := baseEnv()
	env["SERVER_PORT"] = "9090"
	env["IMPORT_MAX_CONCURRENT"] = "4"
	env["LOG_LEVEL"] = "debug"
	env["AUTH_TOKEN_TTL"] = "90m"

	cfg, err := LoadWith(envMap(env))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Import.MaxConcurrent != 4 {
		t.Errorf("Import.MaxConcurrent = %d, want %d", cfg.Import.MaxConcurrent, 4)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Auth.TokenTTL != 90*time.Minute {
		t.Errorf("Auth.TokenTTL = %v, want %v", cfg.Auth.TokenTTL, 90*time.Minute)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	env := baseEnv()
	delete(env, "MONGO_URI")
	env["STORE_DRIVER"] = "postgres"
	env["DB_URL"] = "postgres://localhost/alttest"

	cfg, err := LoadWith(envMap(env))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	if cfg.Store.PostgresURL != "postgres://localhost/alttest" {
		t.Errorf("Store.PostgresURL = %q, want %q", cfg.Store.PostgresURL, "postgres://localhost/alttest")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	env := baseEnv()
	delete(env, "AUTH_JWT_SECRET")

	_, err := LoadWith(envMap(env))
	if err == nil {
		t.Fatal("LoadWith() expected error for missing AUTH_JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Errorf("error should mention AUTH_JWT_SECRET: %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	env := baseEnv()
	env["IMPORT_TIMEOUT"] = "ten minutes"

	_, err := LoadWith(envMap(env))
	if err == nil {
		t.Fatal("LoadWith() expected error for bad duration")
	}
	if !strings.Contains(err.Error(), "IMPORT_TIMEOUT") {
		t.Errorf("error should mention IMPORT_TIMEOUT: %v", err)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	env := baseEnv()
	env["TRUSTED_PROXIES"] = "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16"

	cfg, err := LoadWith(envMap(env))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"max below min conns", func(c *Config) { c.Store.MaxConns, c.Store.MinConns = 2, 5 }, "STORE_MAX_CONNS"},
		{"unknown store", func(c *Config) { c.Store.Driver = "sqlite" }, "STORE_DRIVER"},
		{"mongo without uri", func(c *Config) { c.Store.Driver = StoreMongo; c.Store.MongoDatabase = "x" }, "MONGO_URI"},
		{"postgres without url", func(c *Config) { c.Store.Driver = StorePostgres }, "DATABASE_URL"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "AUTH_JWT_SECRET"},
		{"unknown session driver", func(c *Config) { c.Auth.SessionDriver = "etcd" }, "SESSION_DRIVER"},
		{"s3 without bucket", func(c *Config) { c.Archive.Driver = ArchiveS3 }, "ARCHIVE_S3_BUCKET"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Store.MongoURI = "mongodb://admin:hunter2@db/inventory"
	cfg.Auth.JWTSecret = "supersecretvalue123"

	str := cfg.String()
	if strings.Contains(str, "hunter2") || strings.Contains(str, "supersecretvalue123") {
		t.Error("String() should mask connection strings and secrets")
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}

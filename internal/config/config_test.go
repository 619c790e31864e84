package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.GRPCPort != 9090 {
		t.Errorf("GRPCPort = %d, want 9090", cfg.GRPCPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want localhost:6379", cfg.Redis.Addr)
	}
	if cfg.Executor.PoolSize != 5 {
		t.Errorf("Executor.PoolSize = %d, want 5", cfg.Executor.PoolSize)
	}
	if cfg.Timeouts.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 30s", cfg.Timeouts.ShutdownTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DAGRUN_HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("EXECUTOR_POOL_SIZE", "12")
	t.Setenv("EXECUTOR_HEALTH_CHECK_INTERVAL", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", cfg.Redis.Addr)
	}
	if cfg.Executor.PoolSize != 12 {
		t.Errorf("Executor.PoolSize = %d, want 12", cfg.Executor.PoolSize)
	}
	if cfg.Executor.HealthCheckInterval != 10*time.Second {
		t.Errorf("HealthCheckInterval = %s, want 10s", cfg.Executor.HealthCheckInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad http port", func(c *Config) { c.HTTPPort = 0 }, true},
		{"bad grpc port", func(c *Config) { c.GRPCPort = 70000 }, true},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, true},
		{"zero pool size", func(c *Config) { c.Executor.PoolSize = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				HTTPPort: 8080,
				GRPCPort: 9090,
				LogLevel: "info",
				Redis:    RedisConfig{Addr: "localhost:6379"},
				Executor: ExecutorConfig{PoolSize: 5},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddrHelpers(t *testing.T) {
	cfg := &Config{HTTPPort: 8081, GRPCPort: 9091}
	if got := cfg.GetHTTPAddr(); got != ":8081" {
		t.Errorf("GetHTTPAddr() = %q", got)
	}
	if got := cfg.GetGRPCAddr(); got != ":9091" {
		t.Errorf("GetGRPCAddr() = %q", got)
	}
}

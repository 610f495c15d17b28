package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  host: db.local
  port: 5433
  user: app
  password: secret
  database: ridebook

rabbitmq:
  user: guest
  password: guest

jwt:
  secret_key: "test-secret"
`

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Database.Host != "db.local" || cfg.Database.Port != 5433 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Host != "localhost" || cfg.RabbitMQ.Port != 5672 {
		t.Errorf("rabbitmq defaults not applied: %+v", cfg.RabbitMQ)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("redis defaults not applied: %+v", cfg.Redis)
	}
	if cfg.Services.RideServicePort != 3000 || cfg.Services.PaymentServicePort != 3002 {
		t.Errorf("service port defaults not applied: %+v", cfg.Services)
	}
	if cfg.Timeouts.DriverSearchSeconds != 300 || cfg.Timeouts.SweepIntervalSeconds != 15 {
		t.Errorf("timeout defaults not applied: %+v", cfg.Timeouts)
	}
	if cfg.Payments.MaxRetries != 5 || cfg.Payments.RetryBaseSeconds != 30 {
		t.Errorf("payment defaults not applied: %+v", cfg.Payments)
	}
	if cfg.JWT.SecretKey != "test-secret" {
		t.Errorf("quoted secret must be unquoted, got %q", cfg.JWT.SecretKey)
	}
}

func TestLoadFromFileRejectsMissingRequiredFields(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "database:\n  host: db.local\n"))
	if err == nil {
		t.Fatal("config without credentials must fail validation")
	}
	for _, want := range []string{"database.user", "database.password", "rabbitmq.user"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFromFileRejectsUnknownKeys(t *testing.T) {
	bad := minimalConfig + "\ndatabase_extra:\n  nope: 1\n"
	if _, err := LoadFromFile(writeConfig(t, bad)); err == nil {
		t.Fatal("unknown top-level section must fail")
	}

	bad = strings.Replace(minimalConfig, "  host: db.local", "  host: db.local\n  hosty: oops", 1)
	if _, err := LoadFromFile(writeConfig(t, bad)); err == nil {
		t.Fatal("unknown key inside a section must fail")
	}
}

func TestLoadFromFileRejectsDuplicateSections(t *testing.T) {
	bad := minimalConfig + "\ndatabase:\n  host: again\n"
	if _, err := LoadFromFile(writeConfig(t, bad)); err == nil {
		t.Fatal("duplicate section must fail")
	}
}

func TestTimeoutAccessors(t *testing.T) {
	cfg := &Config{}
	cfg.Timeouts.RequestGraceSeconds = 60
	cfg.Timeouts.DriverSearchSeconds = 300
	cfg.Timeouts.MaxRideDurationSeconds = 14400

	if cfg.RequestGrace() != time.Minute {
		t.Errorf("RequestGrace = %v", cfg.RequestGrace())
	}
	if cfg.DriverSearch() != 5*time.Minute {
		t.Errorf("DriverSearch = %v", cfg.DriverSearch())
	}
	if cfg.MaxRideDuration() != 4*time.Hour {
		t.Errorf("MaxRideDuration = %v", cfg.MaxRideDuration())
	}
}

func TestResolveScalar(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{`plain`, "plain"},
		{`  spaced  `, "spaced"},
	}
	for _, tt := range tests {
		if got := resolveScalar(tt.in); got != tt.want {
			t.Errorf("resolveScalar(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

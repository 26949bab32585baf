package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
log:
  log_level: "debug"
  log_dir: "/tmp/logs"
  log_file: "test.log"
bakalari:
  server_url: "https://school.example.com"
students:
  - name: "anna"
    username: "anna123"
    password: "secret"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithPath(configFile).WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg := res.Config
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if len(cfg.Students) != 1 || cfg.Students[0].Name != "anna" {
		t.Errorf("unexpected students: %+v", cfg.Students)
	}
}

func TestLoader_LoadWritesDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	loader := NewLoader().WithPath(configFile).WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, err := os.Stat(configFile); err != nil {
		t.Errorf("expected default config to be written: %v", err)
	}
	if res.Config.Scheduler.Intervals["timetable"] != 3600 {
		t.Errorf("expected default timetable interval 3600, got %d",
			res.Config.Scheduler.Intervals["timetable"])
	}
	if res.Config.Scheduler.Gate.TimeoutSeconds != 300 {
		t.Errorf("expected default gate timeout 300, got %d",
			res.Config.Scheduler.Gate.TimeoutSeconds)
	}
}

func TestLoader_PasswordFromEnv(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  port: 8080
bakalari:
  server_url: "https://school.example.com"
students:
  - name: "anna"
    username: "anna123"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("BAKALARI_PASSWORD_ANNA", "from-env")

	loader := NewLoader().WithPath(configFile).WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if res.Config.Students[0].Password != "from-env" {
		t.Errorf("expected password from environment, got %q", res.Config.Students[0].Password)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Bakalari: BakalariConfig{ServerURL: "https://school.example.com"},
			Students: []StudentConfig{{Name: "anna", Username: "anna123"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing server url", mutate: func(c *Config) { c.Bakalari.ServerURL = "" }, wantErr: true},
		{name: "no students", mutate: func(c *Config) { c.Students = nil }, wantErr: true},
		{
			name: "duplicate student",
			mutate: func(c *Config) {
				c.Students = append(c.Students, StudentConfig{Name: "anna", Username: "other"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

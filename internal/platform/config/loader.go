package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// DefaultPath is where the loader looks for configuration when no path is
// given.
const DefaultPath = "config.yaml"

// Loader reads configuration from a YAML file, seeding it with defaults on
// first run. Environment variables fill in credentials left out of the file.
type Loader struct {
	path      string
	useDotEnv bool
}

func NewLoader() *Loader {
	return &Loader{
		path:      DefaultPath,
		useDotEnv: true,
	}
}

// WithPath overrides the configuration file path.
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the configuration file. When the file does not exist, the
// default configuration is written there so the operator has a template to
// fill in.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := &Config{}
	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "load", "parse config file", err)
		}
	case os.IsNotExist(err):
		cfg = DefaultConfig()
		out, merr := yaml.Marshal(cfg)
		if merr != nil {
			return nil, errors.Wrap(errors.KindConfig, "load", "marshal default config", merr)
		}
		if werr := os.WriteFile(l.path, out, 0o644); werr != nil {
			return nil, errors.Wrap(errors.KindConfig, "load", "write default config", werr)
		}
	default:
		return nil, errors.Wrap(errors.KindConfig, "load", "read config file", err)
	}

	l.applyEnv(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: l.path}, nil
}

// applyEnv fills in secrets from the environment. File values win only when
// the environment is silent.
func (l *Loader) applyEnv(cfg *Config) {
	for i := range cfg.Students {
		key := "BAKALARI_PASSWORD_" + envKey(cfg.Students[i].Name)
		if v := os.Getenv(key); v != "" {
			cfg.Students[i].Password = v
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		for name, g := range cfg.AI.Gemini {
			g.APIKey = v
			cfg.AI.Gemini[name] = g
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		for name, o := range cfg.AI.OpenAI {
			o.APIKey = v
			cfg.AI.OpenAI[name] = o
		}
	}
	if v := os.Getenv("CANTEEN_NUMBER"); v != "" {
		cfg.Canteen.Number = v
	}
}

func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "validate",
			fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}
	if cfg.Bakalari.ServerURL == "" {
		return errors.New(errors.KindConfig, "validate", "bakalari server_url is required")
	}
	if len(cfg.Students) == 0 {
		return errors.New(errors.KindConfig, "validate", "at least one student must be configured")
	}
	seen := make(map[string]bool, len(cfg.Students))
	for _, s := range cfg.Students {
		if s.Name == "" || s.Username == "" {
			return errors.New(errors.KindConfig, "validate", "student name and username are required")
		}
		if seen[s.Name] {
			return errors.New(errors.KindConfig, "validate",
				fmt.Sprintf("duplicate student name %q", s.Name))
		}
		seen[s.Name] = true
	}
	if cfg.Scheduler.Gate.PollSeconds <= 0 {
		cfg.Scheduler.Gate.PollSeconds = 5
	}
	if cfg.Scheduler.Gate.TimeoutSeconds <= 0 {
		cfg.Scheduler.Gate.TimeoutSeconds = 300
	}
	return nil
}

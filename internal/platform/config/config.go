package config

// Config is the root configuration for the aggregation server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Bakalari  BakalariConfig  `yaml:"bakalari"`
	Students  []StudentConfig `yaml:"students"`
	AI        AIConfig        `yaml:"ai"`
	GDrive    GDriveConfig    `yaml:"gdrive"`
	Canteen   CanteenConfig   `yaml:"canteen"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Prompts   PromptsConfig   `yaml:"prompts"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
}

// BakalariConfig points at the school API server shared by all students.
type BakalariConfig struct {
	ServerURL      string `yaml:"server_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StudentConfig holds one student's credentials. Password may be left empty
// in the file and supplied through the environment instead, keyed as
// BAKALARI_PASSWORD_<NAME>. Info is free-form text about the student made
// available to AI prompts.
type StudentConfig struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Info     string `yaml:"info,omitempty"`
}

type AIConfig struct {
	Selected string                    `yaml:"selected"`
	Gemini   map[string]GeminiConfig   `yaml:"gemini"`
	OpenAI   map[string]OpenAIConfig   `yaml:"openai"`
	Limits   AIUsageLimits             `yaml:"limits"`
}

type GeminiConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

type OpenAIConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AIUsageLimits caps daily AI consumption. Counters reset at local midnight.
type AIUsageLimits struct {
	DailyRequests int `yaml:"daily_requests"`
	DailyTokens   int `yaml:"daily_tokens"`
}

type GDriveConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ServiceAccountFile string `yaml:"service_account_file"`
	FolderID           string `yaml:"folder_id"`
	MailFolderID       string `yaml:"mail_folder_id"`
}

type CanteenConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Number  string `yaml:"number"`
}

// SchedulerConfig sets per-job refresh intervals in seconds and the
// readiness gate used by jobs that depend on other jobs' data.
type SchedulerConfig struct {
	Intervals map[string]int `yaml:"intervals"`
	Gate      GateConfig     `yaml:"gate"`
}

type GateConfig struct {
	PollSeconds    int `yaml:"poll_seconds"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// PromptsConfig maps AI job names to prompt templates. Templates may use
// {placeholders} resolved at render time.
type PromptsConfig struct {
	Summary string `yaml:"summary"`
	Prepare string `yaml:"prepare"`
}

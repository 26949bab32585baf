package config

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "web",
		},
		Bakalari: BakalariConfig{
			ServerURL:      "https://your-school.bakalari.cz",
			TimeoutSeconds: 30,
		},
		Students: []StudentConfig{
			{Name: "student1", Username: "your_username"},
		},
		AI: AIConfig{
			Selected: "GeminiFlash",
			Gemini: map[string]GeminiConfig{
				"GeminiFlash": {
					Model:   "gemini-2.0-flash",
					BaseURL: "https://generativelanguage.googleapis.com/v1beta",
					APIKey:  "your_api_key",
				},
			},
			OpenAI: map[string]OpenAIConfig{
				"ChatGPT": {
					Model:       "gpt-4o-mini",
					BaseURL:     "https://api.openai.com/v1",
					APIKey:      "your_api_key",
					Temperature: 0.7,
					MaxTokens:   4096,
				},
			},
			Limits: AIUsageLimits{
				DailyRequests: 1500,
				DailyTokens:   1000000,
			},
		},
		GDrive: GDriveConfig{
			Enabled:            false,
			ServiceAccountFile: "data/service_account.json",
			FolderID:           "your_folder_id",
		},
		Canteen: CanteenConfig{
			Enabled: false,
			URL:     "https://app.strava.cz/api/jidelnicky",
			Number:  "your_canteen_number",
		},
		Scheduler: SchedulerConfig{
			Intervals: map[string]int{
				"timetable": 3600,
				"marks":     1800,
				"komens":    900,
				"mail":      900,
				"summary":   86400,
				"prepare":   3600,
				"gdrive":    3600,
				"canteen":   3600,
			},
			Gate: GateConfig{
				PollSeconds:    5,
				TimeoutSeconds: 300,
			},
		},
		Storage: StorageConfig{
			Path: "data/school.db",
		},
		Prompts: PromptsConfig{
			Summary: "You are a helpful assistant for the parents of {student}. " +
				"Today is {date}. Summarize the school week in a few short paragraphs.\n\n" +
				"Timetable:\n{timetable}\n\nMarks:\n{marks}\n\nMessages:\n{komens}\n",
			Prepare: "You are a helpful assistant for {student}. Today is {date}. " +
				"Based on tomorrow's timetable and the latest school reports, list what " +
				"to pack and prepare for tomorrow.\n\nTimetable:\n{timetable}\n\nReports:\n{reports}\n",
		},
	}
}

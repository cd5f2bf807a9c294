package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			BotName:  "Chatbot Musical",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			AllowedOrigins: []string{"*"},
			Auth: ServerAuth{
				Username: "admin",
			},
		},
		Provider: ProviderConfig{
			APIKey:         "${GEMINI_API_KEY}",
			Model:          "gemini-1.5-flash",
			Temperature:    0.7,
			TopP:           0.8,
			TopK:           40,
			TimeoutSeconds: 120,
		},
		Store: StoreConfig{
			DBPath: "~/.melobot/melobot.db",
		},
		Weather: WeatherConfig{
			APIKey: "${OPENWEATHER_API_KEY}",
		},
		Music: MusicConfig{
			APIKey:     "${LASTFM_API_KEY}",
			MaxResults: 5,
		},
		Personas: PersonasConfig{
			Dir: "~/.melobot/personas",
		},
		Agent: AgentConfig{
			MaxToolRounds: 5,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

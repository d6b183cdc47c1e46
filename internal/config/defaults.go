package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Sandbox  SandboxConfig  `json:"sandbox"`
	Pipeline PipelineConfig `json:"pipeline"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Addr                string `json:"addr"`                  // Default: ":3000"
	MaxBodyBytes        int64  `json:"max_body_bytes"`        // Default: 1024 * 1024 (1MB)
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`  // Default: 30
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"` // Default: 300 (chat responses are slow)
}

type ProviderConfig struct {
	Kind              string `json:"kind"`                // Default: "together" (together | openai | gemini)
	BaseURL           string `json:"base_url"`            // Default: "https://api.together.xyz/v1"
	Model             string `json:"model"`               // Default: "meta-llama/Llama-3.3-70B-Instruct-Turbo"
	APIKeyEnv         string `json:"api_key_env"`         // Default: "TOGETHER_API_KEY"
	ClassifyMaxTokens int    `json:"classify_max_tokens"` // Default: 200
	ChatMaxTokens     int    `json:"chat_max_tokens"`     // Default: 8000
	TimeoutSeconds    int    `json:"timeout_seconds"`     // Default: 300
}

type SandboxConfig struct {
	Runtime        string   `json:"runtime"`         // Default: "local" (local | docker)
	WorkDir        string   `json:"work_dir"`        // Default: "" (fresh temp dir per session)
	InstallCommand []string `json:"install_command"` // Default: ["npm", "install"]
	DevCommand     []string `json:"dev_command"`     // Default: ["npm", "run", "dev"]

	ReadyTimeoutSeconds int   `json:"ready_timeout_seconds"` // Default: 120
	MaxOutputBytes      int64 `json:"max_output_bytes"`      // Default: 1024 * 1024 (1MB)
	GracefulShutdownMs  int   `json:"graceful_shutdown_ms"`  // Default: 2000

	// Docker
	DockerImage           string   `json:"docker_image"`             // Default: "node:20-alpine"
	DockerPort            int      `json:"docker_port"`              // Default: 5173
	DockerCheckCommand    []string `json:"docker_check_command"`     // Default: ["docker", "info"]
	DockerStartCommand    []string `json:"docker_start_command"`     // Default: ["docker", "desktop", "start"]
	DockerRetryAttempts   int      `json:"docker_retry_attempts"`    // Default: 10
	DockerRetryIntervalMs int      `json:"docker_retry_interval_ms"` // Default: 1000
}

type PipelineConfig struct {
	FailFast bool `json:"fail_fast"` // Default: true
}

type LoggingConfig struct {
	Level      string `json:"level"`       // Default: "info"
	Format     string `json:"format"`      // Default: "console" (console | json)
	OutputPath string `json:"output_path"` // Default: "stderr"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":3000",
			MaxBodyBytes:        1024 * 1024,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 300,
		},
		Provider: ProviderConfig{
			Kind:              "together",
			BaseURL:           "https://api.together.xyz/v1",
			Model:             "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			APIKeyEnv:         "TOGETHER_API_KEY",
			ClassifyMaxTokens: 200,
			ChatMaxTokens:     8000,
			TimeoutSeconds:    300,
		},
		Sandbox: SandboxConfig{
			Runtime:               "local",
			InstallCommand:        []string{"npm", "install"},
			DevCommand:            []string{"npm", "run", "dev"},
			ReadyTimeoutSeconds:   120,
			MaxOutputBytes:        1024 * 1024,
			GracefulShutdownMs:    2000,
			DockerImage:           "node:20-alpine",
			DockerPort:            5173,
			DockerCheckCommand:    []string{"docker", "info"},
			DockerStartCommand:    []string{"docker", "desktop", "start"},
			DockerRetryAttempts:   10,
			DockerRetryIntervalMs: 1000,
		},
		Pipeline: PipelineConfig{
			FailFast: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}

package config

import (
	"fmt"
	"slices"
)

var (
	providerKinds = []string{"together", "openai", "gemini"}
	sandboxKinds  = []string{"local", "docker"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"console", "json"}
)

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	// Server
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if c.Server.MaxBodyBytes < 1 {
		errs = append(errs, "server.max_body_bytes must be >= 1")
	}
	if c.Server.ReadTimeoutSeconds < 1 {
		errs = append(errs, "server.read_timeout_seconds must be >= 1")
	}
	if c.Server.WriteTimeoutSeconds < 1 {
		errs = append(errs, "server.write_timeout_seconds must be >= 1")
	}

	// Provider
	if !slices.Contains(providerKinds, c.Provider.Kind) {
		errs = append(errs, fmt.Sprintf("provider.kind must be one of %v", providerKinds))
	}
	if c.Provider.Model == "" {
		errs = append(errs, "provider.model must not be empty")
	}
	if c.Provider.APIKeyEnv == "" {
		errs = append(errs, "provider.api_key_env must not be empty")
	}
	if c.Provider.ClassifyMaxTokens < 1 {
		errs = append(errs, "provider.classify_max_tokens must be >= 1")
	}
	if c.Provider.ChatMaxTokens < 1 {
		errs = append(errs, "provider.chat_max_tokens must be >= 1")
	}
	if c.Provider.TimeoutSeconds < 1 {
		errs = append(errs, "provider.timeout_seconds must be >= 1")
	}

	// Sandbox
	if !slices.Contains(sandboxKinds, c.Sandbox.Runtime) {
		errs = append(errs, fmt.Sprintf("sandbox.runtime must be one of %v", sandboxKinds))
	}
	if len(c.Sandbox.InstallCommand) == 0 {
		errs = append(errs, "sandbox.install_command must not be empty")
	}
	if len(c.Sandbox.DevCommand) == 0 {
		errs = append(errs, "sandbox.dev_command must not be empty")
	}
	if c.Sandbox.ReadyTimeoutSeconds < 1 {
		errs = append(errs, "sandbox.ready_timeout_seconds must be >= 1")
	}
	if c.Sandbox.MaxOutputBytes < 1 {
		errs = append(errs, "sandbox.max_output_bytes must be >= 1")
	}
	if c.Sandbox.GracefulShutdownMs < 1 {
		errs = append(errs, "sandbox.graceful_shutdown_ms must be >= 1")
	}

	// Sandbox - Docker
	if c.Sandbox.Runtime == "docker" {
		if c.Sandbox.DockerImage == "" {
			errs = append(errs, "sandbox.docker_image must not be empty")
		}
		if len(c.Sandbox.DockerCheckCommand) == 0 {
			errs = append(errs, "sandbox.docker_check_command must not be empty")
		}
	}
	if c.Sandbox.DockerPort < 1 || c.Sandbox.DockerPort > 65535 {
		errs = append(errs, "sandbox.docker_port must be between 1 and 65535")
	}
	if c.Sandbox.DockerRetryAttempts < 1 {
		errs = append(errs, "sandbox.docker_retry_attempts must be >= 1")
	}
	if c.Sandbox.DockerRetryIntervalMs < 1 {
		errs = append(errs, "sandbox.docker_retry_interval_ms must be >= 1")
	}

	// Logging
	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("logging.format must be one of %v", logFormats))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

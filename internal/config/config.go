// Package config loads and validates the host's YAML configuration file,
// including ${VAR} environment expansion, a deep-merged local override
// file, and optional hot-reload via fsnotify.
package config

import "fmt"

// AgentConfig describes the external agent's workspace.
type AgentConfig struct {
	Workspace string `yaml:"workspace"`
	DataDir   string `yaml:"data_dir"`
}

// ProviderConfig describes the default LLM provider.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	Trigger      string   `yaml:"trigger"`
	AllowedUsers []string `yaml:"allowed_users"`
}

// DiscordConfig configures the Discord channel adapter.
type DiscordConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	Trigger      string   `yaml:"trigger"`
	AllowedUsers []string `yaml:"allowed_users"`
}

// ChannelsConfig groups all channel-adapter configs.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// SchedulerConfig configures the scheduler loop.
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PollInterval int    `yaml:"poll_interval"`
	DataFile     string `yaml:"data_file"`
}

// SkillsConfig configures skill loading (an external collaborator; only
// its enable flag and directory matter to this host).
type SkillsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// WebConfig configures the web_fetch/web_search tools.
type WebConfig struct {
	BraveAPIKey  string `yaml:"brave_api_key"`
	FetchTimeout int    `yaml:"fetch_timeout"`
}

// TranscriptionConfig configures the voice-transcription client.
type TranscriptionConfig struct {
	Provider string `yaml:"provider"` // "groq" | "openai"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  int    `yaml:"timeout"`
}

// BridgeConfig is one named policy scope in the gateway.
type BridgeConfig struct {
	AllowedCommands []string `yaml:"allowed_commands"`
	AllowedCwd      []string `yaml:"allowed_cwd"`
}

// GatewayConfig configures the host-command gateway server and client.
type GatewayConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	URL            string                  `yaml:"url"`
	Token          string                  `yaml:"token"`
	Port           int                     `yaml:"port"`
	DefaultTimeout int                     `yaml:"default_timeout"`
	Bridges        map[string]BridgeConfig `yaml:"bridges"`
}

// TierConfig is one named LLM configuration in the tier router.
type TierConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
}

// ModelRouterConfig configures the tier router.
type ModelRouterConfig struct {
	Enabled     bool                  `yaml:"enabled"`
	DefaultTier string                `yaml:"default_tier"`
	Tiers       map[string]TierConfig `yaml:"tiers"`
}

// ClaudeCodeConfig configures the Claude-Code sub-bridge (non-core; its
// lifecycle uses the gateway spec but its protocol is out of scope here).
type ClaudeCodeConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ProjectPaths []string `yaml:"project_paths"`
	Options      []string `yaml:"options"`
}

// LoggingConfig configures the ambient slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"` // DEBUG | INFO | WARNING | ERROR | CRITICAL
}

// TelemetryConfig configures OTEL span export, an ambient concern
// carried regardless of which feature set a given deployment enables.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Config is the fully-resolved host configuration.
type Config struct {
	Agent         AgentConfig                 `yaml:"agent"`
	Provider      ProviderConfig              `yaml:"provider"`
	Channels      ChannelsConfig              `yaml:"channels"`
	Scheduler     SchedulerConfig             `yaml:"scheduler"`
	MCPServers    map[string]map[string]any   `yaml:"mcp_servers"`
	Skills        SkillsConfig                `yaml:"skills"`
	Web           WebConfig                   `yaml:"web"`
	Transcription TranscriptionConfig         `yaml:"transcription"`
	Gateway       GatewayConfig               `yaml:"gateway"`
	ModelRouter   ModelRouterConfig           `yaml:"model_router"`
	ClaudeCode    ClaudeCodeConfig            `yaml:"claude_code"`
	Logging       LoggingConfig               `yaml:"logging"`
	Telemetry     TelemetryConfig             `yaml:"telemetry"`
}

// Default returns a Config populated with sensible defaults, used to
// fill unset fields after loading a user's config file.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Workspace: ".",
			DataDir:   "data",
		},
		Provider: ProviderConfig{
			Temperature: 0.7,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Trigger: "@Ciana"},
			Discord:  DiscordConfig{Trigger: "@Ciana"},
		},
		Scheduler: SchedulerConfig{
			PollInterval: 60,
			DataFile:     "data/tasks.json",
		},
		Gateway: GatewayConfig{
			Port:           9842,
			DefaultTimeout: 60,
			Bridges:        map[string]BridgeConfig{},
		},
		ModelRouter: ModelRouterConfig{
			DefaultTier: "standard",
			Tiers:       map[string]TierConfig{},
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true,
}

// Validate enforces cross-field invariants: the model router's default
// tier must be non-empty and, when the router is enabled, must be a
// member of the configured tier set.
func (c *Config) Validate() error {
	if c.Logging.Level != "" && !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("config: invalid logging.level %q", c.Logging.Level)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("config: provider.temperature must be within [0, 2], got %v", c.Provider.Temperature)
	}
	if c.ModelRouter.DefaultTier == "" {
		return fmt.Errorf("config: model_router.default_tier must be non-empty")
	}
	if c.ModelRouter.Enabled {
		if _, ok := c.ModelRouter.Tiers[c.ModelRouter.DefaultTier]; !ok {
			return fmt.Errorf("config: model_router.default_tier %q is not present in tiers", c.ModelRouter.DefaultTier)
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.PollInterval < 1 {
		return fmt.Errorf("config: scheduler.poll_interval must be >= 1 second")
	}
	if c.Gateway.Enabled && c.Gateway.Token == "" {
		return fmt.Errorf("config: gateway.token must be non-empty when gateway.enabled is true")
	}
	return nil
}

package config

import (
	"time"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
)

// Transport names accepted by backend.transport.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Config is the client configuration read from scribe.yml.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" json:"backend" jsonschema:"description=How to reach the native backend"`
	Streams  StreamsConfig  `yaml:"streams" json:"streams" jsonschema:"description=Event stream names"`
	Errors   ErrorsConfig   `yaml:"errors" json:"errors" jsonschema:"description=Last-error banner policy"`
	Settings SettingsConfig `yaml:"settings" json:"settings" jsonschema:"description=User settings store"`
	Logging  logging.Config `yaml:"logging" json:"logging" jsonschema:"description=Logging output"`
}

// BackendConfig locates the backend. Socket wins over Address when both are set
// and the socket is reachable.
type BackendConfig struct {
	Socket    string        `yaml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket path of the backend"`
	Address   string        `yaml:"address,omitempty" json:"address,omitempty" jsonschema:"description=host:port or http(s) URL of the backend"`
	Transport string        `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"enum=sse,enum=websocket,description=Event stream transport"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Per-command timeout (nanoseconds once decoded)"`
}

// StreamsConfig names the backend event streams.
type StreamsConfig struct {
	Download string `yaml:"download,omitempty" json:"download,omitempty"`
	Chat     string `yaml:"chat,omitempty" json:"chat,omitempty"`
	Progress string `yaml:"progress,omitempty" json:"progress,omitempty"`
}

// ErrorsConfig controls the last-error slot.
type ErrorsConfig struct {
	TTL      time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" jsonschema:"description=How long an error stays in the banner"`
	Suppress []errors.Kind `yaml:"suppress,omitempty" json:"suppress,omitempty" jsonschema:"description=Error codes that are returned but never shown"`
}

// SettingsConfig locates the user settings file (.yml, .yaml, .toml or .json).
type SettingsConfig struct {
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Watch *bool  `yaml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Reload settings when the file changes (default true)"`
}

// Default stream names.
const (
	DefaultDownloadStream = "download"
	DefaultChatStream     = "chat_message_chunk"
	DefaultProgressStream = "summarization_progress"
)

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend.Transport == "" {
		c.Backend.Transport = TransportSSE
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Streams.Download == "" {
		c.Streams.Download = DefaultDownloadStream
	}
	if c.Streams.Chat == "" {
		c.Streams.Chat = DefaultChatStream
	}
	if c.Streams.Progress == "" {
		c.Streams.Progress = DefaultProgressStream
	}
	if c.Errors.TTL == 0 {
		c.Errors.TTL = 5 * time.Second
	}
	if c.Errors.Suppress == nil {
		c.Errors.Suppress = []errors.Kind{errors.KindNotFound, errors.KindInvalidInput}
	}
	if c.Settings.Watch == nil {
		watch := true
		c.Settings.Watch = &watch
	}
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	switch c.Backend.Transport {
	case TransportSSE, TransportWebSocket:
	default:
		return errors.InvalidInput("backend.transport", "must be sse or websocket")
	}
	if c.Backend.Timeout < 0 {
		return errors.InvalidInput("backend.timeout", "must not be negative")
	}
	if c.Errors.TTL <= 0 {
		return errors.InvalidInput("errors.ttl", "must be positive")
	}
	for _, k := range c.Errors.Suppress {
		if errors.ParseKind(string(k)) != k {
			return errors.InvalidInput("errors.suppress", "unknown code "+string(k))
		}
	}
	return nil
}

package config

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/pkg/paths"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path. A missing file is an error; use LoadDefault for the
// optional default location.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError(err).WithDetail("config", path)
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		if appErr, ok := errors.As(err); ok {
			return nil, appErr.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads $SCRIBE_CONFIG, or the XDG scribe.yml. When neither exists
// it returns the defaults.
func LoadDefault() (*Config, error) {
	return LoadWithLogger("", logrus.NewEntry(logrus.StandardLogger()))
}

// LoadWithLogger resolves the config file the same way as LoadDefault, with an
// explicit path taking precedence over everything.
func LoadWithLogger(explicit string, logger *logrus.Entry) (*Config, error) {
	path := FindConfigFile(explicit)
	if path == "" {
		logger.Debug("No config file found, using defaults")
		cfg := Default()
		applyEnv(cfg)
		return cfg, nil
	}

	logger.WithField("path", path).Debug("Loading configuration")
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Effective configuration:\n%s", data)
		}
	}
	return cfg, nil
}

// LoadFromBytes parses YAML, validates it against the schema, applies defaults
// and environment overrides, then runs semantic validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.KindInvalidInput, "failed to parse YAML configuration")
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnknown, "failed to create validator")
	}
	if err := validator.Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindInvalidInput, "schema validation failed")
	}

	cfg.SetDefaults()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile returns the first existing file among explicit,
// $SCRIBE_CONFIG and the XDG location, or "" when none exists. An explicit
// path is returned even if missing so that Load reports it.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, candidate := range []string{os.Getenv("SCRIBE_CONFIG"), paths.ConfigFile()} {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// applyEnv overrides backend location from SCRIBE_SOCKET / SCRIBE_ADDRESS and
// falls back to the default socket when nothing is configured.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SCRIBE_SOCKET"); v != "" {
		cfg.Backend.Socket = v
	}
	if v := os.Getenv("SCRIBE_ADDRESS"); v != "" {
		cfg.Backend.Address = v
	}
	if cfg.Backend.Socket == "" && cfg.Backend.Address == "" {
		cfg.Backend.Socket = paths.SocketPath()
	}
	cfg.Backend.Socket = paths.Expand(cfg.Backend.Socket)
	cfg.Settings.Path = paths.Expand(cfg.Settings.Path)
	if cfg.Settings.Path == "" {
		cfg.Settings.Path = paths.SettingsFile()
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default}.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(name, ":-", 2)
		name = parts[0]
		fallback := ""
		if len(parts) > 1 {
			fallback = parts[1]
		}

		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

package logging

// Config is the `logging` section of scribe.yml.
type Config struct {
	// Level is the minimum level to output (debug, info, warn, error).
	// SCRIBE_LOG_LEVEL overrides it.
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// ReportCaller adds file, line and function to each entry.
	// SCRIBE_LOG_CALLER=true enables it.
	ReportCaller bool `yaml:"report_caller,omitempty" json:"report_caller,omitempty"`

	File FileSinkConfig `yaml:"file,omitempty" json:"file,omitempty"`

	Format FormatConfig `yaml:"format,omitempty" json:"format,omitempty"`
}

// FileSinkConfig configures the optional file sink.
type FileSinkConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Path of the log file. Defaults to <state dir>/logs/<component>.log.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset is "default" (rich text), "simple" (level and message) or "json".
	Preset           string `yaml:"preset,omitempty" json:"preset,omitempty" jsonschema:"enum=default,enum=simple,enum=json"`
	DisableTimestamp bool   `yaml:"disable_timestamp,omitempty" json:"disable_timestamp,omitempty"`
	DisableComponent bool   `yaml:"disable_component,omitempty" json:"disable_component,omitempty"`
	// StructuredToStderr is "auto" (default), "always" or "never".
	StructuredToStderr string `yaml:"structured_to_stderr,omitempty" json:"structured_to_stderr,omitempty" jsonschema:"enum=auto,enum=always,enum=never"`
}

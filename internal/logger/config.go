package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"defaultlevel" mapstructure:"defaultlevel"` // default level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`         // "Local", "UTC" or an IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`           // console output
	FileOutput   *FileOutput       `yaml:"fileoutput" mapstructure:"fileoutput"`     // JSON file output
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels"` // per-module level overrides
}

// ConsoleOutput represents console logging configuration.
// Console output is text without timestamps; journald or docker add their own.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps, rotated by size.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"maxsize" mapstructure:"maxsize"`       // megabytes before rotation
	MaxAge     int    `yaml:"maxage" mapstructure:"maxage"`         // days to keep rotated files
	MaxBackups int    `yaml:"maxbackups" mapstructure:"maxbackups"` // rotated files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Default values for logging configuration, mirrored in conf/defaults.go.
const (
	DefaultLogLevel   = "info"
	DefaultLogPath    = "logs/birdview.log"
	DefaultMaxSize    = 50
	DefaultMaxAge     = 30
	DefaultMaxBackups = 5
)

// applyConfigDefaults fills in nil sections so an old config file without
// them still logs to the console.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
	if cfg.Console.Level == "" {
		cfg.Console.Level = cfg.DefaultLevel
	}
	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{Enabled: false}
	}
	fo := cfg.FileOutput
	if fo.Path == "" {
		fo.Path = DefaultLogPath
	}
	if fo.Level == "" {
		fo.Level = cfg.DefaultLevel
	}
	if fo.MaxSize <= 0 {
		fo.MaxSize = DefaultMaxSize
	}
	if fo.MaxAge < 0 {
		fo.MaxAge = DefaultMaxAge
	}
	if fo.MaxBackups < 0 {
		fo.MaxBackups = DefaultMaxBackups
	}
}

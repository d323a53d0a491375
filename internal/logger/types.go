package logger

// DefaultLevel is used when logger.level is unset.
const DefaultLevel = "info"

// Config is the logger section of the feeds configuration.
type Config struct {
	Level       string   `mapstructure:"level"`
	Development bool     `mapstructure:"development"` // disables sampling
	OutputPaths []string `mapstructure:"output_paths"`
}

// SetDefaults logs at info to stdout.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}

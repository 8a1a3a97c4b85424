package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Obfuscation level names.
const (
	LevelBasic        = "basic"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// String encoding layer names, in layer table index order.
const (
	StringLayerBase64  = "base64"
	StringLayerRot13   = "rot13"
	StringLayerReverse = "reverse"
	StringLayerHex     = "hex"
)

// --- Nested Configuration Structs ---

// StringsConfig defines settings for string literal encoding.
type StringsConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	MinLayers      int  `yaml:"min_layers" mapstructure:"min_layers"`
	MaxLayers      int  `yaml:"max_layers" mapstructure:"max_layers"`
	SkipDocstrings bool `yaml:"skip_docstrings" mapstructure:"skip_docstrings"`
}

// ScramblingConfig defines settings for name scrambling.
type ScramblingConfig struct {
	Mode   string `yaml:"mode" mapstructure:"mode"`
	Length int    `yaml:"length" mapstructure:"length"`
}

// ControlFlowConfig defines settings for control flow flattening.
type ControlFlowConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	MinStatements int  `yaml:"min_statements" mapstructure:"min_statements"`
}

// OpaquePredicatesConfig defines settings for opaque predicate injection.
type OpaquePredicatesConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	InjectionRate int  `yaml:"injection_rate" mapstructure:"injection_rate"`
}

// DeadCodeConfig defines settings for dead code injection.
type DeadCodeConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	InjectionRate int  `yaml:"injection_rate" mapstructure:"injection_rate"`
}

// NumbersConfig defines settings for numeric literal obfuscation.
type NumbersConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// EntryConfig defines how the script entry point is treated.
type EntryConfig struct {
	Preserve bool   `yaml:"preserve" mapstructure:"preserve"`
	Name     string `yaml:"name" mapstructure:"name"`
}

// IgnoreConfig lists identifiers that must never be renamed. Patterns use
// filepath.Match syntax.
type IgnoreConfig struct {
	Names    []string `yaml:"names" mapstructure:"names"`
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
}

// ObfuscationConfig holds all transformation-specific settings.
type ObfuscationConfig struct {
	Strings          StringsConfig          `yaml:"strings" mapstructure:"strings"`
	Scrambling       ScramblingConfig       `yaml:"scrambling" mapstructure:"scrambling"`
	ControlFlow      ControlFlowConfig      `yaml:"control_flow" mapstructure:"control_flow"`
	OpaquePredicates OpaquePredicatesConfig `yaml:"opaque_predicates" mapstructure:"opaque_predicates"`
	DeadCode         DeadCodeConfig         `yaml:"dead_code" mapstructure:"dead_code"`
	Numbers          NumbersConfig          `yaml:"numbers" mapstructure:"numbers"`
	Entry            EntryConfig            `yaml:"entry" mapstructure:"entry"`
	Ignore           IgnoreConfig           `yaml:"ignore" mapstructure:"ignore"`
}

// Config holds all configuration settings for the obfuscator.
// Struct tags control how Viper maps config file keys and environment variables.
type Config struct {
	// Input/Output settings
	SourceDirectory string `mapstructure:"source_directory" yaml:"source_directory"`
	TargetDirectory string `mapstructure:"target_directory" yaml:"target_directory"`

	// General behavior
	Level        string `mapstructure:"level" yaml:"level"`
	Seed         int64  `mapstructure:"seed" yaml:"seed"`
	Silent       bool   `mapstructure:"silent" yaml:"silent"`
	AbortOnError bool   `mapstructure:"abort_on_error" yaml:"abort_on_error"`
	DebugMode    bool   `mapstructure:"debug_mode" yaml:"debug_mode"`
	Parallelism  int    `mapstructure:"parallelism" yaml:"parallelism"`

	// File handling
	SourceExtensions []string `mapstructure:"source_extensions" yaml:"source_extensions"`
	SkipPaths        []string `mapstructure:"skip" yaml:"skip"`
	KeepPaths        []string `mapstructure:"keep" yaml:"keep"`

	Obfuscation ObfuscationConfig `mapstructure:"obfuscation" yaml:"obfuscation"`
}

// Default values for the configuration.
// Viper requires keys to be lowercase for automatic env var binding.
var defaults = map[string]interface{}{
	"level":            LevelIntermediate,
	"seed":             0,
	"silent":           false,
	"abortonerror":     false,
	"debugmode":        false,
	"parallelism":      0, // 0 means GOMAXPROCS
	"sourceextensions": []string{"py"},
	"skip":             nil,
	"keep":             nil,
	"sourcedirectory":  "",
	"targetdirectory":  "",
}

var (
	// Testing controls whether informational output is suppressed.
	Testing bool
)

// PrintInfo prints an informational message unless tests silenced output.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// ValidLevel reports whether name is a recognized obfuscation level.
func ValidLevel(name string) bool {
	switch name {
	case LevelBasic, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// ApplyLevel sets the per-pass toggles implied by the named level. Explicit
// per-pass settings in a config file are applied after this, so a file can
// still switch an individual pass off.
func (c *Config) ApplyLevel(level string) error {
	if !ValidLevel(level) {
		return fmt.Errorf("unknown obfuscation level %q", level)
	}
	c.Level = level
	c.Obfuscation.Strings.Enabled = true
	c.Obfuscation.OpaquePredicates.Enabled = level != LevelBasic
	c.Obfuscation.ControlFlow.Enabled = level == LevelAdvanced
	c.Obfuscation.DeadCode.Enabled = level == LevelAdvanced
	c.Obfuscation.Numbers.Enabled = level == LevelAdvanced
	return nil
}

// LoadConfig reads configuration from a YAML file on top of the defaults and
// returns a filled Config struct.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = "pymixer.yaml" // Default path
	}

	if _, err := os.Stat(configPath); err == nil {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}

		// Apply the file's level first so its per-pass settings win over the
		// level's implied toggles.
		var head struct {
			Level string `yaml:"level"`
		}
		if err := yaml.Unmarshal(yamlFile, &head); err == nil && head.Level != "" {
			if err := cfg.ApplyLevel(head.Level); err != nil {
				return nil, err
			}
		}

		err = yaml.Unmarshal(yamlFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling config file %s: %w", configPath, err)
		}
		if !cfg.Silent {
			PrintInfo("Info: Loaded configuration from %s\n", configPath)
		}
	} else if os.IsNotExist(err) {
		if configPath != "pymixer.yaml" {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		PrintInfo("Info: Configuration file 'pymixer.yaml' not found, using default settings.\n")
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TargetDirectory != "" {
		cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	}
	return cfg, nil
}

// applyEnvOverrides lets PYMIXER_ environment variables override the general
// settings loaded from file. The loaded values are installed as viper
// defaults, so a variable that is not set leaves its setting untouched.
func applyEnvOverrides(cfg *Config) error {
	v := NewViper()
	v.SetDefault("level", cfg.Level)
	v.SetDefault("seed", cfg.Seed)
	v.SetDefault("silent", cfg.Silent)
	v.SetDefault("abortonerror", cfg.AbortOnError)
	v.SetDefault("debugmode", cfg.DebugMode)
	v.SetDefault("parallelism", cfg.Parallelism)
	v.SetDefault("sourcedirectory", cfg.SourceDirectory)
	v.SetDefault("targetdirectory", cfg.TargetDirectory)

	if lvl := v.GetString("level"); lvl != cfg.Level {
		if err := cfg.ApplyLevel(lvl); err != nil {
			return err
		}
	}
	cfg.Seed = v.GetInt64("seed")
	cfg.Silent = v.GetBool("silent")
	cfg.AbortOnError = v.GetBool("abortonerror")
	cfg.DebugMode = v.GetBool("debugmode")
	cfg.Parallelism = v.GetInt("parallelism")
	cfg.SourceDirectory = v.GetString("sourcedirectory")
	cfg.TargetDirectory = v.GetString("targetdirectory")
	return nil
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	if !ValidLevel(c.Level) {
		return fmt.Errorf("unknown obfuscation level %q", c.Level)
	}
	s := c.Obfuscation.Strings
	if s.MinLayers < 1 || s.MaxLayers > 4 || s.MinLayers > s.MaxLayers {
		return fmt.Errorf("string layer bounds must satisfy 1 <= min <= max <= 4, got [%d, %d]",
			s.MinLayers, s.MaxLayers)
	}
	if r := c.Obfuscation.OpaquePredicates.InjectionRate; r < 0 || r > 100 {
		return fmt.Errorf("opaque predicate injection rate must be 0-100, got %d", r)
	}
	if r := c.Obfuscation.DeadCode.InjectionRate; r < 0 || r > 100 {
		return fmt.Errorf("dead code injection rate must be 0-100, got %d", r)
	}
	if c.Obfuscation.Scrambling.Length < 2 {
		return fmt.Errorf("scramble length must be at least 2, got %d", c.Obfuscation.Scrambling.Length)
	}
	for _, pat := range c.Obfuscation.Ignore.Patterns {
		if _, err := filepath.Match(pat, ""); err != nil {
			return fmt.Errorf("bad ignore pattern %q: %w", pat, err)
		}
	}
	return nil
}

// SaveConfig writes the default configuration to a file.
func SaveConfig(configPath string) error {
	cfg := DefaultConfig()
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	err = os.WriteFile(configPath, yamlData, 0644)
	if err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	PrintInfo("Info: Saved default configuration to %s\n", configPath)
	return nil
}

// DefaultConfig returns a configuration with default settings. The default
// level is intermediate: renaming, string encoding and opaque predicates.
func DefaultConfig() *Config {
	return &Config{
		Level:            LevelIntermediate,
		Seed:             0,
		Silent:           false,
		AbortOnError:     false,
		DebugMode:        false,
		Parallelism:      0,
		SourceExtensions: []string{"py"},
		SkipPaths:        []string{"*.git*", "__pycache__", "*.pyc"},
		KeepPaths:        []string{},

		Obfuscation: ObfuscationConfig{
			Strings: StringsConfig{
				Enabled:        true,
				MinLayers:      1,
				MaxLayers:      4,
				SkipDocstrings: false,
			},
			Scrambling: ScramblingConfig{
				Mode:   "identifier",
				Length: 5,
			},
			ControlFlow: ControlFlowConfig{
				Enabled:       false,
				MinStatements: 2,
			},
			OpaquePredicates: OpaquePredicatesConfig{
				Enabled:       true,
				InjectionRate: 50,
			},
			DeadCode: DeadCodeConfig{
				Enabled:       false,
				InjectionRate: 30,
			},
			Numbers: NumbersConfig{
				Enabled: false,
			},
			Entry: EntryConfig{
				Preserve: true,
				Name:     "main",
			},
			Ignore: IgnoreConfig{
				Names:    []string{},
				Patterns: []string{},
			},
		},
	}
}

// Helper to explicitly bind environment variables, handling potential key mismatches
func bindEnv(v *viper.Viper, key string) {
	envKey := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	_ = v.BindEnv(key, "PYMIXER_"+envKey)
}

// NewViper returns a viper instance seeded with the package defaults and the
// PYMIXER_ environment prefix. LoadConfig layers it over the file values so
// environment variables win.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("PYMIXER")
	v.AutomaticEnv()
	for key := range defaults {
		bindEnv(v, key)
	}
	return v
}

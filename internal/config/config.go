// Package config holds the tunable game constants and the personality
// profile. Every empirically chosen constant (stat bounds, balance ratio,
// trait caps) is configuration, not a hard constant.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	Pet       PetConfig       `yaml:"pet"`
	Traits    TraitsConfig    `yaml:"traits"`
	Generator GeneratorConfig `yaml:"generator"`
	Profile   Profile         `yaml:"profile"`
	API       APIConfig       `yaml:"api"`
}

// PetConfig bounds the pet's mutable numeric state.
type PetConfig struct {
	StatMin         int `yaml:"stat_min"`
	StatMax         int `yaml:"stat_max"`
	StatChangeLimit int `yaml:"stat_change_limit"` // per-run clamp on each stat delta
	MemoryCapacity  int `yaml:"memory_capacity"`
}

// TraitsConfig bounds the trait solidification and balance engine.
type TraitsConfig struct {
	EffectValueMin     int            `yaml:"effect_value_min"`
	EffectValueMax     int            `yaml:"effect_value_max"`
	BalanceRatio       float64        `yaml:"balance_ratio"`       // negative may not exceed positive × ratio
	CompensationFactor float64        `yaml:"compensation_factor"` // size of the synthesized compensation trait
	MechanismFactor    float64        `yaml:"mechanism_factor"`    // weight multiplier for special mechanisms
	TypeCaps           map[string]int `yaml:"type_caps"`           // max active traits per type
}

// GeneratorConfig governs the generator gateway: request budget, cache,
// and per-call timeout.
type GeneratorConfig struct {
	BudgetPerWindow int           `yaml:"budget_per_window"`
	BudgetWindow    time.Duration `yaml:"budget_window"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("30s",
// "1m") and leaves fields absent from the document untouched.
func (g *GeneratorConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		BudgetPerWindow *int     `yaml:"budget_per_window"`
		BudgetWindow    string   `yaml:"budget_window"`
		CallTimeout     string   `yaml:"call_timeout"`
		Temperature     *float64 `yaml:"temperature"`
		MaxTokens       *int     `yaml:"max_tokens"`
	}
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	if r.BudgetPerWindow != nil {
		g.BudgetPerWindow = *r.BudgetPerWindow
	}
	if r.BudgetWindow != "" {
		d, err := time.ParseDuration(r.BudgetWindow)
		if err != nil {
			return fmt.Errorf("budget_window: %w", err)
		}
		g.BudgetWindow = d
	}
	if r.CallTimeout != "" {
		d, err := time.ParseDuration(r.CallTimeout)
		if err != nil {
			return fmt.Errorf("call_timeout: %w", err)
		}
		g.CallTimeout = d
	}
	if r.Temperature != nil {
		g.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		g.MaxTokens = *r.MaxTokens
	}
	return nil
}

// Profile injects the pet personality and per-stage prompt templates, so
// variants of the pipeline differ only by configuration.
type Profile struct {
	Name        string `yaml:"name"`
	Personality string `yaml:"personality"`

	PerceptionPrompt string `yaml:"perception_prompt"`
	CorePrompt       string `yaml:"core_prompt"`
	ExecutionPrompt  string `yaml:"execution_prompt"`
	TraitsPrompt     string `yaml:"traits_prompt"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port              int    `yaml:"port"`
	AdminKey          string `yaml:"admin_key"`           // bearer token for mutating admin endpoints; empty disables them
	RequestsPerMinute int    `yaml:"requests_per_minute"` // per-pet cap on react/evolve; 0 disables
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Pet: PetConfig{
			StatMin:         0,
			StatMax:         100,
			StatChangeLimit: 20,
			MemoryCapacity:  20,
		},
		Traits: TraitsConfig{
			EffectValueMin:     1,
			EffectValueMax:     50,
			BalanceRatio:       1.2,
			CompensationFactor: 0.8,
			MechanismFactor:    1.5,
			TypeCaps: map[string]int{
				"attack":  5,
				"defense": 5,
				"special": 3,
				"passive": 8,
			},
		},
		Generator: GeneratorConfig{
			BudgetPerWindow: 30,
			BudgetWindow:    time.Minute,
			CallTimeout:     15 * time.Second,
			Temperature:     0.7,
			MaxTokens:       600,
		},
		Profile: DefaultProfile(),
		API: APIConfig{
			Port:              8080,
			RequestsPerMinute: 20,
		},
	}
}

// Load reads a YAML file and overlays it on the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

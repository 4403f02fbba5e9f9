// Package config holds the application configuration: resolver strategy
// flags, gateway connection settings and observability endpoints.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/resolver"
)

// Edge requirement names accepted in configuration files.
const (
	EdgeRequirementDisjoint = "disjoint-info-sources"
	EdgeRequirementNew      = "new-info-source"
	EdgeRequirementNone     = "none"
)

// Best-match selection names accepted in configuration files.
const (
	SelectionLeastSources = "least-sources"
	SelectionMostSources  = "most-sources"
)

// Known-attribute direction names.
const (
	SmallerIsBetter = "smaller-is-better"
	BiggerIsBetter  = "bigger-is-better"
)

// ResolverConfig are the resolver strategy flags.
type ResolverConfig struct {
	AllowWorseEdges    *bool             `json:"allow_worse_edges,omitempty" yaml:"allow_worse_edges,omitempty"`
	EdgeRequirement    string            `json:"edge_requirement,omitempty" yaml:"edge_requirement,omitempty"`
	BestMatchSelection string            `json:"best_match_selection,omitempty" yaml:"best_match_selection,omitempty"`
	KnownAttributes    map[string]string `json:"known_attributes,omitempty" yaml:"known_attributes,omitempty"`
}

// NATSConfig defines the gateway connection.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty" yaml:"urls,omitempty"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`

	// subject prefixes: announcements arrive on <announce>.<clientID>,
	// documents go out on <respond>.<clientID>
	AnnounceSubject string `json:"announce_subject,omitempty" yaml:"announce_subject,omitempty"`
	RespondSubject  string `json:"respond_subject,omitempty" yaml:"respond_subject,omitempty"`

	// backpressure towards the single resolver thread: announcements per
	// second and burst admitted by the gateway; 0 disables the limit
	AnnounceRate  float64 `json:"announce_rate,omitempty" yaml:"announce_rate,omitempty"`
	AnnounceBurst int     `json:"announce_burst,omitempty" yaml:"announce_burst,omitempty"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the complete application configuration.
type Config struct {
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	LogLevel string         `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Default returns the default configuration, mirroring the resolver's
// built-in strategy.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			EdgeRequirement:    EdgeRequirementDisjoint,
			BestMatchSelection: SelectionLeastSources,
		},
		NATS: NATSConfig{
			URLs:            []string{"nats://127.0.0.1:4222"},
			Name:            "srgresolver",
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
			AnnounceSubject: "srg.announce",
			RespondSubject:  "srg.respond",
			AnnounceRate:    100,
			AnnounceBurst:   200,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

// Load reads a configuration file, YAML or JSON by extension, on top of the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read")
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumeration fields and endpoint settings.
func (c *Config) Validate() error {
	switch c.Resolver.EdgeRequirement {
	case "", EdgeRequirementDisjoint, EdgeRequirementNew, EdgeRequirementNone:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("bad edge_requirement %q", c.Resolver.EdgeRequirement),
			"config", "Validate", "resolver")
	}
	switch c.Resolver.BestMatchSelection {
	case "", SelectionLeastSources, SelectionMostSources:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("bad best_match_selection %q", c.Resolver.BestMatchSelection),
			"config", "Validate", "resolver")
	}
	for attr, dir := range c.Resolver.KnownAttributes {
		if dir != SmallerIsBetter && dir != BiggerIsBetter {
			return errors.WrapInvalid(
				fmt.Errorf("bad direction %q for known attribute %q", dir, attr),
				"config", "Validate", "resolver")
		}
	}
	if len(c.NATS.URLs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("nats.urls cannot be empty"), "config", "Validate", "nats")
	}
	if c.NATS.AnnounceSubject == "" || c.NATS.RespondSubject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("nats subjects cannot be empty"), "config", "Validate", "nats")
	}
	if c.NATS.AnnounceRate < 0 || c.NATS.AnnounceBurst < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("nats announce rate and burst cannot be negative"),
			"config", "Validate", "nats")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(
			fmt.Errorf("metrics.addr cannot be empty when metrics are enabled"),
			"config", "Validate", "metrics")
	}
	return nil
}

// ResolverOptions converts the configuration into resolver options.
func (c *Config) ResolverOptions() resolver.Options {
	opts := resolver.DefaultOptions()

	if c.Resolver.AllowWorseEdges != nil {
		opts.AllowWorseEdges = *c.Resolver.AllowWorseEdges
	}
	switch c.Resolver.EdgeRequirement {
	case EdgeRequirementNew:
		opts.EdgeRequirement = resolver.RequireNewSource
	case EdgeRequirementNone:
		opts.EdgeRequirement = resolver.RequireNone
	case EdgeRequirementDisjoint:
		opts.EdgeRequirement = resolver.RequireDisjointSources
	}
	if c.Resolver.BestMatchSelection == SelectionMostSources {
		opts.BestMatchSelection = resolver.SelectMostSources
	}
	if len(c.Resolver.KnownAttributes) > 0 {
		known := make(map[string]resolver.Direction, len(c.Resolver.KnownAttributes))
		for attr, dir := range c.Resolver.KnownAttributes {
			if dir == BiggerIsBetter {
				known[attr] = resolver.BiggerIsBetter
			} else {
				known[attr] = resolver.SmallerIsBetter
			}
		}
		opts.KnownAttributes = known
	}
	return opts
}

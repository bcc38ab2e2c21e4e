// Package config loads and validates the application configuration. TOML
// and YAML are both accepted, chosen by file extension, and every field has
// a sensible default so a minimal file only needs a callsign.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/filter"
	"github.com/c360/spotstream/spot"
)

// Feed defaults match the public reverse beacon network CW/RTTY port.
const (
	DefaultHost = "telnet.reversebeacon.net"
	DefaultPort = 7000
)

// Duration decodes from a Go duration string ("90s", "15m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which both TOML and
// YAML decoders honor.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. yaml.v3 does not consult
// encoding.TextUnmarshaler, so the hook is spelled out.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Size decodes from a human-readable byte size ("10 MB", "512KiB") or a
// bare number of bytes.
type Size int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

// StringOrList decodes a scalar string or a list of strings, so a filter
// with one pattern doesn't need list syntax.
type StringOrList []string

// UnmarshalTOML implements toml.Unmarshaler.
func (s *StringOrList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*s = StringOrList{val}
		return nil
	case []any:
		out := make(StringOrList, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got %T", v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = StringOrList{single}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

// WatchlistConfig references an externally maintained callsign list.
type WatchlistConfig struct {
	Resource        string   `toml:"resource" yaml:"resource"`
	RefreshInterval Duration `toml:"refresh_interval" yaml:"refresh_interval"`
}

// FilterConfig is one filter entry in the configuration file.
type FilterConfig struct {
	Name           string           `toml:"name" yaml:"name"`
	DXCall         StringOrList     `toml:"dx_call" yaml:"dx_call"`
	Spotter        StringOrList     `toml:"spotter" yaml:"spotter"`
	Bands          []string         `toml:"bands" yaml:"bands"`
	Modes          []string         `toml:"modes" yaml:"modes"`
	SpotTypes      []string         `toml:"spot_types" yaml:"spot_types"`
	MinSNR         *int             `toml:"min_snr" yaml:"min_snr"`
	MaxSNR         *int             `toml:"max_snr" yaml:"max_snr"`
	MinWPM         *uint16          `toml:"min_wpm" yaml:"min_wpm"`
	MaxWPM         *uint16          `toml:"max_wpm" yaml:"max_wpm"`
	MaxKeptEntries *int             `toml:"max_kept_entries" yaml:"max_kept_entries"`
	Watchlist      *WatchlistConfig `toml:"watchlist" yaml:"watchlist"`
}

// StorageConfig bounds the spot storage.
type StorageConfig struct {
	GlobalMaxSize         Size `toml:"global_max_size" yaml:"global_max_size"`
	DefaultMaxKeptEntries int  `toml:"default_max_kept_entries" yaml:"default_max_kept_entries"`
}

// HTTPConfig controls the HTTP surface (REST retrieval, websocket stream,
// health, Prometheus metrics).
type HTTPConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" yaml:"listen_addr"`
}

// NATSConfig enables the optional matched-spot fan-out. Disabled when the
// URL is empty.
type NATSConfig struct {
	URL           string `toml:"url" yaml:"url"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix"`
}

// Config is the full application configuration.
type Config struct {
	Callsign       string   `toml:"callsign" yaml:"callsign"`
	Host           string   `toml:"host" yaml:"host"`
	Port           int      `toml:"port" yaml:"port"`
	ConnectTimeout Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    Duration `toml:"read_timeout" yaml:"read_timeout"`
	Reconnect      bool     `toml:"reconnect" yaml:"reconnect"`
	CWOnly         bool     `toml:"cw_only" yaml:"cw_only"`
	StatsInterval  Duration `toml:"stats_interval" yaml:"stats_interval"`

	HTTP    HTTPConfig     `toml:"http" yaml:"http"`
	Storage StorageConfig  `toml:"storage" yaml:"storage"`
	NATS    NATSConfig     `toml:"nats" yaml:"nats"`
	Filters []FilterConfig `toml:"filters" yaml:"filters"`
}

// Default returns the configuration used when a field is absent from the
// file. A default config with no filters stores nothing but still parses
// and counts the feed.
func Default() Config {
	return Config{
		Callsign:       "N0CALL",
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: Duration(30 * time.Second),
		ReadTimeout:    Duration(120 * time.Second),
		Reconnect:      true,
		CWOnly:         true,
		StatsInterval:  Duration(30 * time.Second),
		HTTP: HTTPConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		Storage: StorageConfig{
			GlobalMaxSize:         Size(10 * 1024 * 1024),
			DefaultMaxKeptEntries: 100,
		},
	}
}

// Load reads and decodes the file at path over the defaults, then
// validates. The decoder is chosen by extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read file")
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load",
			fmt.Sprintf("unsupported config extension %q", ext))
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "decode "+path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field that has an invalid representation. Filter
// entries are validated through their predicate form.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", msg)
	}

	if c.Callsign == "" {
		return invalid("callsign must not be empty")
	}
	if c.Host == "" {
		return invalid("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return invalid(fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.StatsInterval < 0 {
		return invalid("timeouts and intervals must not be negative")
	}
	if c.Storage.GlobalMaxSize <= 0 {
		return invalid("storage.global_max_size must be positive")
	}
	if c.Storage.DefaultMaxKeptEntries <= 0 {
		return invalid("storage.default_max_kept_entries must be positive")
	}
	if c.HTTP.Enabled && c.HTTP.ListenAddr == "" {
		return invalid("http.listen_addr must not be empty when http is enabled")
	}

	if _, err := c.Predicates(); err != nil {
		return err
	}
	return nil
}

// Predicates converts the filter entries into validated predicates, in file
// order.
func (c *Config) Predicates() ([]filter.Predicate, error) {
	predicates := make([]filter.Predicate, 0, len(c.Filters))
	for i, fc := range c.Filters {
		p, err := fc.predicate()
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Predicates",
				fmt.Sprintf("filter %d (%s)", i, fc.displayName(i)))
		}
		predicates = append(predicates, p)
	}
	return predicates, nil
}

func (fc *FilterConfig) displayName(i int) string {
	if fc.Name != "" {
		return fc.Name
	}
	return fmt.Sprintf("filter_%d", i)
}

func (fc *FilterConfig) predicate() (filter.Predicate, error) {
	p := filter.Predicate{
		Name:           fc.Name,
		DXCall:         filter.PatternSet(fc.DXCall),
		Spotter:        filter.PatternSet(fc.Spotter),
		Bands:          fc.Bands,
		MinSNR:         fc.MinSNR,
		MaxSNR:         fc.MaxSNR,
		MinWPM:         fc.MinWPM,
		MaxWPM:         fc.MaxWPM,
		MaxKeptEntries: fc.MaxKeptEntries,
	}

	if fc.Modes != nil {
		p.Modes = make([]spot.Mode, 0, len(fc.Modes))
		for _, m := range fc.Modes {
			mode := spot.ParseMode(m)
			if mode == spot.ModeUnknown {
				return p, fmt.Errorf("unknown mode %q", m)
			}
			p.Modes = append(p.Modes, mode)
		}
	}
	if fc.SpotTypes != nil {
		p.Types = make([]spot.Type, 0, len(fc.SpotTypes))
		for _, st := range fc.SpotTypes {
			p.Types = append(p.Types, spot.ParseType(st))
		}
	}
	if fc.Watchlist != nil {
		p.Watchlist = &filter.WatchlistRef{
			Resource:        fc.Watchlist.Resource,
			RefreshInterval: fc.Watchlist.RefreshInterval.Std(),
		}
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

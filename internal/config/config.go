package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"promoscrape/internal/telemetry"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	_ "embed"
)

//go:embed default.json5
var defaultConfig []byte

// Anchor is the fixed coordinate every search and nearest-store lookup is made from.
type Anchor struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Config holds everything a scrape run needs.
type Config struct {
	BaseUrl   string `json:"base_url"`
	IndexName string `json:"index_name"`

	// Retailers is the catalog, one pipeline run per entry.
	Retailers []string `json:"retailers"`

	Anchor        Anchor `json:"anchor"`
	SearchRadius  int    `json:"search_radius"`
	HitsPerPage   int    `json:"hits_per_page"`
	StoreDistance int    `json:"store_distance"`

	Workers           int     `json:"workers"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"` // 0 = unlimited

	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`

	// Outputs are file paths (format picked by extension) or postgres DSNs.
	Outputs []string `json:"outputs"`

	// DumpHttpDir, if set, receives one text file per HTTP exchange.
	DumpHttpDir string `json:"dump_http_dir"`

	Telemetry telemetry.Config `json:"telemetry"`
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() (Config, error) {
	var out Config
	err := json5.Unmarshal(defaultConfig, &out)
	if err != nil {
		return Config{}, fmt.Errorf("parse default config: %w", err)
	}
	return out, nil
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

func readFile(path string, out *Config) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// Read builds the effective configuration, later layers win:
//  1. the embedded defaults
//  2. <name>.<ext>
//  3. <name>.local.<ext>
//
// Missing files are skipped. An empty path means defaults only.
func Read(path string) (Config, error) {
	out, err := Default()
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		prefix, ext := splitExt(path)
		layers := []string{path, fmt.Sprintf("%s.local.%s", prefix, ext)}

		for _, layer := range layers {
			var override Config
			found, err := readFile(layer, &override)
			if err != nil {
				return Config{}, err
			}
			if !found {
				slog.Debug("config layer not found", "path", layer)
				continue
			}
			err = mergo.Merge(&out, override, mergo.WithOverride)
			if err != nil {
				return Config{}, fmt.Errorf("merge %s: %w", layer, err)
			}
			slog.Info("merged config layer", "path", layer)
		}
	}

	out.ApplyDefaults()
	err = out.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return out, nil
}

// ApplyDefaults fills zero values and normalizes the catalog.
func (c *Config) ApplyDefaults() {
	if c.IndexName == "" {
		c.IndexName = "search-promoscore-promotions"
	}
	if c.SearchRadius <= 0 {
		c.SearchRadius = 90000000
	}
	if c.HitsPerPage <= 0 {
		c.HitsPerPage = 3
	}
	if c.StoreDistance <= 0 {
		c.StoreDistance = 9000000
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}

	retailers := make([]string, 0, len(c.Retailers))
	for _, r := range c.Retailers {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		retailers = append(retailers, r)
	}
	c.Retailers = retailers
}

// Validate checks the configuration for correctness.
func (c Config) Validate() error {
	base, err := url.Parse(c.BaseUrl)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseUrl)
	}
	if len(c.Retailers) == 0 {
		return fmt.Errorf("retailers must not be empty")
	}
	if c.Anchor.Lat < -90 || c.Anchor.Lat > 90 {
		return fmt.Errorf("anchor.lat must be between -90 and 90, got %v", c.Anchor.Lat)
	}
	if c.Anchor.Lng < -180 || c.Anchor.Lng > 180 {
		return fmt.Errorf("anchor.lng must be between -180 and 180, got %v", c.Anchor.Lng)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.RequestsPerSecond)
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("outputs must not be empty")
	}
	for _, o := range c.Outputs {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("outputs must not contain empty targets")
		}
	}
	return nil
}

// headers that carry credentials, lowercase
var secretHeaders = map[string]bool{
	"cookie":        true,
	"authorization": true,
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	cookies := make(map[string]string, len(c.Cookies))
	for k := range c.Cookies {
		cookies[k] = "<redacted>"
	}
	c.Cookies = cookies

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		if secretHeaders[strings.ToLower(k)] {
			v = "<redacted>"
		}
		headers[k] = v
	}
	c.Headers = headers
	return c
}

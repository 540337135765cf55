/*
Package config holds the scan settings shared by the command-line flags and the
optional YAML config file.

Precedence is flag over file over default: Load starts from Default and
overlays the file, then Override copies in the flags the user set explicitly.
*/
package config

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/x-stp/rxsub/internal/certlib"
	"github.com/x-stp/rxsub/internal/core"
	"github.com/x-stp/rxsub/internal/wordlist"
)

// Report formats.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// Config mirrors the scan command's flags.
type Config struct {
	Domain      string `yaml:"domain"`
	Concurrency int    `yaml:"concurrency"`
	// Timeout is the per-request DNS and HTTP timeout in seconds.
	Timeout  int    `yaml:"timeout"`
	Wordlist string `yaml:"wordlist"`
	Output   string `yaml:"output"`
	Format   string `yaml:"format"`
	Variant  string `yaml:"variant"`
	// Gzip compresses the report file.
	Gzip bool `yaml:"gzip"`

	Permissive bool `yaml:"permissive"`

	NoCT      bool   `yaml:"no_ct"`
	CTTimeout int    `yaml:"ct_timeout"`
	CTRecords int    `yaml:"ct_records"`
	CTLimit   int    `yaml:"ct_limit"`
	CTURL     string `yaml:"ct_url"`

	DNSServers []string `yaml:"dns_servers"`
	Rate       float64  `yaml:"rate"`
	PinWorkers bool     `yaml:"pin_workers"`

	ProgressEvery int  `yaml:"progress_every"`
	Bar           bool `yaml:"bar"`
	NoColor       bool `yaml:"no_color"`

	DB           string `yaml:"db"`
	SlackWebhook string `yaml:"slack_webhook"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Concurrency:   core.DefaultConcurrency,
		Timeout:       int(core.DefaultTimeout / time.Second),
		Format:        FormatText,
		Variant:       string(wordlist.Rich),
		CTTimeout:     int(core.DefaultCTTimeout / time.Second),
		CTRecords:     core.DefaultCTRecords,
		CTLimit:       core.DefaultMaxCTCandidates,
		CTURL:         certlib.DefaultCrtShURL,
		ProgressEvery: core.DefaultProgressEvery,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// overrides maps a flag name to the field it sets.
var overrides = map[string]func(dst, src *Config){
	"domain":         func(d, s *Config) { d.Domain = s.Domain },
	"concurrency":    func(d, s *Config) { d.Concurrency = s.Concurrency },
	"timeout":        func(d, s *Config) { d.Timeout = s.Timeout },
	"wordlist":       func(d, s *Config) { d.Wordlist = s.Wordlist },
	"output":         func(d, s *Config) { d.Output = s.Output },
	"format":         func(d, s *Config) { d.Format = s.Format },
	"variant":        func(d, s *Config) { d.Variant = s.Variant },
	"gzip":           func(d, s *Config) { d.Gzip = s.Gzip },
	"permissive":     func(d, s *Config) { d.Permissive = s.Permissive },
	"no-ct":          func(d, s *Config) { d.NoCT = s.NoCT },
	"ct-timeout":     func(d, s *Config) { d.CTTimeout = s.CTTimeout },
	"ct-records":     func(d, s *Config) { d.CTRecords = s.CTRecords },
	"ct-limit":       func(d, s *Config) { d.CTLimit = s.CTLimit },
	"ct-url":         func(d, s *Config) { d.CTURL = s.CTURL },
	"dns-server":     func(d, s *Config) { d.DNSServers = s.DNSServers },
	"rate":           func(d, s *Config) { d.Rate = s.Rate },
	"pin-workers":    func(d, s *Config) { d.PinWorkers = s.PinWorkers },
	"progress-every": func(d, s *Config) { d.ProgressEvery = s.ProgressEvery },
	"bar":            func(d, s *Config) { d.Bar = s.Bar },
	"no-color":       func(d, s *Config) { d.NoColor = s.NoColor },
	"db":             func(d, s *Config) { d.DB = s.DB },
	"slack-webhook":  func(d, s *Config) { d.SlackWebhook = s.SlackWebhook },
}

// FlagNames lists the flag names Override understands.
func FlagNames() []string {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	return names
}

// Override copies into c every field of flags whose flag name changed reports
// as explicitly set.
func (c *Config) Override(flags *Config, changed func(name string) bool) {
	for name, set := range overrides {
		if changed(name) {
			set(c, flags)
		}
	}
}

// Validate normalizes the domain and rejects unusable settings.
func (c *Config) Validate() error {
	c.Domain = certlib.NormalizeDomain(c.Domain)
	if c.Domain == "" {
		return errors.New("a valid domain is required")
	}
	if c.Concurrency < 1 || c.Concurrency > core.MaxWorkers {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", core.MaxWorkers, c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.CTTimeout <= 0 {
		return fmt.Errorf("ct timeout must be positive, got %d", c.CTTimeout)
	}
	if c.CTRecords < 1 {
		return fmt.Errorf("ct records must be at least 1, got %d", c.CTRecords)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Rate)
	}
	if c.ProgressEvery < 1 {
		return fmt.Errorf("progress interval must be at least 1, got %d", c.ProgressEvery)
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format != FormatText && c.Format != FormatJSONL {
		return fmt.Errorf("unknown format %q (want text or jsonl)", c.Format)
	}
	v, err := wordlist.ParseVariant(c.Variant)
	if err != nil {
		return err
	}
	c.Variant = string(v)
	return nil
}

// RequestTimeout is Timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CTRequestTimeout is CTTimeout as a duration.
func (c *Config) CTRequestTimeout() time.Duration {
	return time.Duration(c.CTTimeout) * time.Second
}

// ReportExt is the report file extension for Format, with ".gz" when compressed.
func (c *Config) ReportExt() string {
	ext := "txt"
	if c.Format == FormatJSONL {
		ext = "jsonl"
	}
	if c.Gzip {
		ext += ".gz"
	}
	return ext
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/logger"
)

// Config holds the key server configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string `yaml:"data"`

	// HTTPAddress is the listen address for jobs and the admin API.
	HTTPAddress string `yaml:"http"`

	// KeyPath is the node key file. A key is generated when it is missing.
	KeyPath string `yaml:"key"`

	// Peers maps hex NodeIDs to base URLs. The local node may be listed.
	Peers map[string]string `yaml:"peers"`

	// MinResponses is the number of nodes that must answer a discovery.
	// Zero requires every node.
	MinResponses int `yaml:"min_responses"`

	// Timeout bounds one discovery run.
	Timeout time.Duration `yaml:"timeout"`

	// CompressAbove is the body size from which job payloads are zstd
	// compressed. Negative disables compression.
	CompressAbove int `yaml:"compress_above"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		DataPath:      "./data",
		HTTPAddress:   ":8080",
		Peers:         map[string]string{},
		Timeout:       10 * time.Second,
		CompressAbove: 4 << 10,
		LogLevel:      "info",
	}
}

// peerFlags collects repeated -peer <nodeid>=<url> flags.
type peerFlags map[string]string

func (p peerFlags) String() string {
	parts := make([]string, 0, len(p))
	for id, u := range p {
		parts = append(parts, id+"="+u)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (p peerFlags) Set(v string) error {
	id, u, ok := strings.Cut(v, "=")
	if !ok || id == "" || u == "" {
		return fmt.Errorf("want <nodeid>=<url>, got %q", v)
	}
	p[id] = u
	return nil
}

// parseConfig reads flags from args. With -config, the YAML file provides
// every value not given explicitly on the command line.
func parseConfig(args []string) (*Config, error) {
	cfg := defaultConfig()
	peers := peerFlags{}

	fs := flag.NewFlagSet("keyserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", cfg.HTTPAddress, "HTTP listen address")
	fs.StringVar(&cfg.KeyPath, "key", cfg.KeyPath, "Node key path (generates new if missing)")
	fs.Var(peers, "peer", "Peer as <nodeid>=<url>, repeatable")
	fs.IntVar(&cfg.MinResponses, "min-responses", cfg.MinResponses, "Answers required by discovery (0 = all)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Discovery timeout")
	fs.IntVar(&cfg.CompressAbove, "compress-above", cfg.CompressAbove, "Compress payloads from this size (negative disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *configPath != "" {
		file, err := loadConfigFile(*configPath)
		if err != nil {
			return nil, err
		}
		applyFile(cfg, file, set)
	}

	for id, u := range peers {
		cfg.Peers[id] = u
	}

	return cfg, nil
}

// loadConfigFile decodes a YAML file on top of the defaults.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Peers == nil {
		cfg.Peers = map[string]string{}
	}
	return cfg, nil
}

// applyFile copies file values into cfg for every flag not set explicitly.
func applyFile(cfg, file *Config, set map[string]bool) {
	overlay := map[string]func(){
		"data":           func() { cfg.DataPath = file.DataPath },
		"http":           func() { cfg.HTTPAddress = file.HTTPAddress },
		"key":            func() { cfg.KeyPath = file.KeyPath },
		"min-responses":  func() { cfg.MinResponses = file.MinResponses },
		"timeout":        func() { cfg.Timeout = file.Timeout },
		"compress-above": func() { cfg.CompressAbove = file.CompressAbove },
		"log-level":      func() { cfg.LogLevel = file.LogLevel },
	}
	for name, apply := range overlay {
		if !set[name] {
			apply()
		}
	}

	for id, u := range file.Peers {
		cfg.Peers[id] = u
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.DataPath == "" {
		errs = append(errs, errors.New("data path is required"))
	}
	if c.HTTPAddress == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.MinResponses < 0 {
		errs = append(errs, fmt.Errorf("min responses must not be negative, got %d", c.MinResponses))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PeerMap(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// PeerMap decodes the configured peers.
func (c *Config) PeerMap() (map[keyshare.NodeID]string, error) {
	peers := make(map[keyshare.NodeID]string, len(c.Peers))
	for hexID, raw := range c.Peers {
		id, err := keyshare.ParseNodeID(hexID)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", hexID, err)
		}

		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("peer %s url: %w", hexID, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("peer %s url %q: want http(s)://host[:port]", hexID, raw)
		}
		peers[id] = raw
	}
	return peers, nil
}

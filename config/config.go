package config

import (
	"flag"
	"strconv"
	"strings"
	"time"
)

// StaticMapping pairs a URL prefix with the filesystem root it serves,
// mirroring the (url-prefix, fs-root) pairs spec §6's application
// configuration enumerates.
type StaticMapping struct {
	URLPrefix string
	FSRoot    string
}

// Config holds all application configuration: the listener, the BDR
// cache's tunables, and the static asset pool's mappings and capacity.
type Config struct {
	Port int
	Env  string

	ReadTimeout time.Duration

	// StaticMappings and MaxMemSpace configure the static asset pool.
	// MaxMemSpace of 0 selects the pool's auto capacity (2x scanned size).
	StaticMappings []StaticMapping
	MaxMemSpace    int64

	// BDR tunables; zero selects the cache's package defaults.
	BDRMaxBytes           int64
	BDRMaxEntryAgeSec     int
	BDRRevalidateHits     uint64
	BDRLatencyThresholdMs int64
}

// New loads configuration from command-line flags.
func New() *Config {
	cfg := &Config{}

	var readTimeoutSec int
	var staticMappings string

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development/production)")
	flag.IntVar(&readTimeoutSec, "read-timeout", 5, "per-request header/body read timeout (seconds)")

	flag.StringVar(&staticMappings, "static", "", "comma-separated url-prefix=fs-root pairs, e.g. /assets=./public")
	flag.Int64Var(&cfg.MaxMemSpace, "max-mem-space", 0, "static pool capacity in bytes (0 = auto, 2x scanned size)")

	flag.Int64Var(&cfg.BDRMaxBytes, "bdr-max-bytes", 0, "BDR cache byte cap (0 = default)")
	flag.IntVar(&cfg.BDRMaxEntryAgeSec, "bdr-max-entry-age-sec", 0, "BDR entry TTL in seconds (0 = default)")
	flag.Uint64Var(&cfg.BDRRevalidateHits, "bdr-revalidate-hits", 0, "BDR forced-revalidation hit count (0 = default)")
	flag.Int64Var(&cfg.BDRLatencyThresholdMs, "bdr-latency-threshold-ms", 0, "minimum handler latency eligible for BDR learning, in ms (0 = default)")

	flag.Parse()

	cfg.ReadTimeout = time.Duration(readTimeoutSec) * time.Second
	cfg.StaticMappings = parseStaticMappings(staticMappings)

	// Environment variables prefixed BDRSERVER_ override the flag-derived
	// port and environment name, e.g. BDRSERVER_PORT, BDRSERVER_ENV.
	mgr := NewManager()
	mgr.LoadFromEnv("BDRSERVER")
	cfg.Port = mgr.GetInt("port", cfg.Port)
	cfg.Env = mgr.GetString("env", cfg.Env)

	return cfg
}

// parseStaticMappings parses "prefix=root,prefix2=root2" into mappings,
// silently skipping malformed entries.
func parseStaticMappings(raw string) []StaticMapping {
	if raw == "" {
		return nil
	}
	var out []StaticMapping
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		out = append(out, StaticMapping{
			URLPrefix: pair[:eq],
			FSRoot:    pair[eq+1:],
		})
	}
	return out
}

// BDRMaxEntryAge converts the configured seconds into a time.Duration.
func (c *Config) BDRMaxEntryAge() time.Duration {
	return time.Duration(c.BDRMaxEntryAgeSec) * time.Second
}

// Addr renders Port as a listen address, e.g. ":8080".
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Package config reads the TOML file describing a repository and opens
// the drivers it names.
//
// A file looks like
//
//	codec = "cbor"
//	compression = "zstd"
//	parallelism = 8
//	promote = true
//	sentry_dsn = ""
//
//	[[tier]]
//	kind = "file"
//	path = "/var/cache/chasm"
//
//	[[tier]]
//	location = "s3://minio.local:9000/bucket/chasm"
//
// Tiers are listed nearest first. With one tier Open returns a plain
// repository; with more it returns a hybrid chain, and the last tier holds
// the commit refs.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/compression"
)

// Config is the decoded form of a configuration file.
type Config struct {
	Codec       string `toml:"codec"`
	Compression string `toml:"compression"`
	Parallelism int    `toml:"parallelism"`
	Promote     bool   `toml:"promote"`
	SentryDSN   string `toml:"sentry_dsn"`
	Tiers       []Tier `toml:"tier"`
}

// Tier describes the drivers of one repository in the chain. Either give
// Location, or give Kind and the fields that kind uses.
type Tier struct {
	// Location is a shorthand for the other fields. See ParseLocation.
	Location string `toml:"location"`

	Kind string `toml:"kind"` // memory, file, s3, ql or mysql

	Path     string `toml:"path"`     // file: directory, ql: database file or "memory"
	Prefix   string `toml:"prefix"`   // namespace for every key
	Bucket   string `toml:"bucket"`   // s3
	Region   string `toml:"region"`   // s3, defaults to us-east-1
	Endpoint string `toml:"endpoint"` // s3, for services other than AWS
	Certifi  bool   `toml:"certifi"`  // s3, use the certifi root certificates
	DSN      string `toml:"dsn"`      // mysql
}

// Default returns the configuration used when there is no file: a single
// in-memory tier.
func Default() *Config {
	return &Config{
		Codec:       "cbor",
		Compression: "zstd",
		Parallelism: 8,
		Tiers:       []Tier{{Kind: "memory"}},
	}
}

// Load reads and validates the configuration file at path. Settings not in
// the file keep their Default values, except the tiers, which the file must
// list.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Tiers = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for configuration text already in memory.
func Parse(text string) (*Config, error) {
	cfg := Default()
	cfg.Tiers = nil
	if _, err := toml.Decode(text, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, expanding any tier locations.
func (cfg *Config) Validate() error {
	if _, err := codec.ByName(cfg.Codec); err != nil {
		return err
	}
	if _, err := compression.Parse(cfg.Compression); err != nil {
		return err
	}
	if cfg.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", cfg.Parallelism)
	}
	if len(cfg.Tiers) == 0 {
		return fmt.Errorf("no tiers configured")
	}
	for i := range cfg.Tiers {
		if err := cfg.Tiers[i].expand(); err != nil {
			return fmt.Errorf("tier %d: %s", i, err)
		}
		if err := cfg.Tiers[i].validate(); err != nil {
			return fmt.Errorf("tier %d: %s", i, err)
		}
	}
	return nil
}

// expand fills in the tier from its Location, if it has one.
func (t *Tier) expand() error {
	if t.Location == "" {
		return nil
	}
	if t.Kind != "" {
		return fmt.Errorf("give either location or kind, not both")
	}
	parsed, err := ParseLocation(t.Location)
	if err != nil {
		return err
	}
	if parsed.Prefix == "" {
		parsed.Prefix = t.Prefix
	}
	parsed.Region = t.Region
	parsed.Certifi = t.Certifi
	*t = parsed
	return nil
}

func (t *Tier) validate() error {
	switch t.Kind {
	case "memory":
	case "file":
		if t.Path == "" {
			return fmt.Errorf("file tier needs a path")
		}
	case "s3":
		if t.Bucket == "" {
			return fmt.Errorf("s3 tier needs a bucket")
		}
	case "ql":
		if t.Path == "" {
			return fmt.Errorf("ql tier needs a path")
		}
	case "mysql":
		if t.DSN == "" {
			return fmt.Errorf("mysql tier needs a dsn")
		}
	case "":
		return fmt.Errorf("missing kind")
	default:
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	return nil
}

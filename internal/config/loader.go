package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads, expands, defaults and validates a configuration file.
//
// ${VAR} references in the file are replaced with environment variables
// before parsing. Relative file paths in the configuration are resolved
// against the directory containing the file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(ExpandEnvironment(data, os.LookupEnv), path)
	if err != nil {
		return nil, err
	}

	ResolvePaths(cfg, GetConfigDir(path))
	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnvironment replaces ${VAR} references using lookup.
// Unknown variables are left as-is.
func ExpandEnvironment(data []byte, lookup func(string) (string, bool)) []byte {
	s := string(data)
	var b strings.Builder
	b.Grow(len(s))

	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start

		b.WriteString(s[:start])
		name := s[start+2 : end]
		if value, ok := lookup(name); ok && name != "" {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}

	return []byte(b.String())
}

// ResolvePaths makes relative file references absolute against dir.
func ResolvePaths(cfg *Config, dir string) {
	if dir == "" {
		return
	}
	if p := cfg.Payload.SchemaFile; p != "" && !filepath.IsAbs(p) {
		cfg.Payload.SchemaFile = filepath.Join(dir, p)
	}
	if p := cfg.Sink.Path; p != "" && !filepath.IsAbs(p) {
		cfg.Sink.Path = filepath.Join(dir, p)
	}
}

// GetConfigDir returns the directory containing the config file
func GetConfigDir(configPath string) string {
	return filepath.Dir(configPath)
}

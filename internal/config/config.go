package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Config holds application configuration
type Config struct {
	// Device is the receiver address as host:port. Empty means discover
	// one on the local network.
	Device string `toml:"device"`
	// Port selects the HTTP port: empty or "0" for a random port, a
	// single port like "8000", or an inclusive range like "8000-8010".
	Port string `toml:"port"`
}

// Load reads the optional config file and applies environment overrides.
// A missing file is fine; a file that fails to parse is not.
func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{}

	dir, err := os.UserConfigDir()
	if err == nil {
		path := filepath.Join(dir, "joujou", "config.toml")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	if v := os.Getenv("JOUJOU_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("JOUJOU_PORT"); v != "" {
		cfg.Port = v
	}

	logger.Info("Configuration loaded",
		zap.String("device", cfg.Device),
		zap.String("port", cfg.Port))

	return cfg, nil
}

// Ports expands the port spec into the candidate ports to try, in order.
// An empty result means bind a random port.
func (c *Config) Ports() ([]uint16, error) {
	spec := strings.TrimSpace(c.Port)
	if spec == "" || spec == "0" {
		return nil, nil
	}
	lo, hi, ok := strings.Cut(spec, "-")
	first, err := parsePort(lo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint16{first}, nil
	}
	last, err := parsePort(hi)
	if err != nil {
		return nil, err
	}
	if last < first {
		return nil, fmt.Errorf("invalid port range %q", spec)
	}
	ports := make([]uint16, 0, last-first+1)
	for p := first; ; p++ {
		ports = append(ports, p)
		if p == last {
			break
		}
	}
	return ports, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}

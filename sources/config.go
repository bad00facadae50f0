package sources

import (
	"fmt"
	"strconv"
	"time"
)

// SourceConfig names a source type and carries its settings.
type SourceConfig struct {
	Name           string            `koanf:"name" json:"name"`
	ConnectionType string            `koanf:"type" json:"type"`
	Config         map[string]string `koanf:"config" json:"config"`
	Key            string            `koanf:"key" json:"key"`
}

func (c SourceConfig) require(keys ...string) error {
	for _, k := range keys {
		if c.Config[k] == "" {
			return fmt.Errorf("%w: %s source needs %q", ErrMissingConfig, c.ConnectionType, k)
		}
	}
	return nil
}

func (c SourceConfig) uint64(key string, def uint64) (uint64, error) {
	s := c.Config[key]
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (c SourceConfig) float(key string, def float64) (float64, error) {
	s := c.Config[key]
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func (c SourceConfig) duration(key string, def time.Duration) (time.Duration, error) {
	s := c.Config[key]
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

package sinks

import "fmt"

// SinkConfig names a sink type and carries its settings.
type SinkConfig struct {
	Name           string            `koanf:"name" json:"name"`
	ConnectionType string            `koanf:"type" json:"type"`
	Config         map[string]string `koanf:"config" json:"config"`
	Key            string            `koanf:"key" json:"key"`
}

func (c SinkConfig) require(keys ...string) error {
	for _, k := range keys {
		if c.Config[k] == "" {
			return fmt.Errorf("%w: %s sink needs %q", ErrMissingConfig, c.ConnectionType, k)
		}
	}
	return nil
}

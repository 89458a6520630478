package config

import "strings"

func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigIsNil
	}
	if err := c.Node.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *NodeConfig) Validate() error {
	return nil
}

func (c *TransportConfig) Validate() error {

	if !knownCodecs.Contains(c.Codec) {
		return ErrUnknownCodec
	}

	if c.Replicas < 1 {
		return ErrInvalidReplicas
	}

	if c.Copies < 1 {
		return ErrInvalidCopies
	}

	return nil
}

func (c *CacheConfig) Validate() error {
	if c.Shards < 1 {
		return ErrInvalidShards
	}
	return nil
}

func (c *MetricsConfig) Validate() error {
	return nil
}

func (c *LogConfig) Validate() error {
	if !knownLevels.Contains(strings.ToLower(c.Level)) {
		return ErrUnknownLogLevel
	}
	return nil
}

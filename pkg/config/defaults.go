package config

import (
	"opcrdt/pkg/storage"
	"opcrdt/pkg/structs"

	"github.com/google/uuid"
)

const (
	CodecJSON = "json"
	CodecNone = "none"
)

var knownCodecs = structs.NewSet(CodecJSON, CodecNone)

var knownLevels = structs.NewSet("debug", "info", "warn", "error")

var defaultTransport = TransportConfig{
	Codec:    CodecJSON,
	Replicas: 3,
	Copies:   1,
}

var defaultCache = CacheConfig{
	Shards:         storage.DefaultShards,
	ScaleThreshold: storage.DefaultScaleThreshold,
}

var defaultMetrics = MetricsConfig{
	Enabled:   false,
	Namespace: "opcrdt",
}

var defaultLog = LogConfig{
	Level: "info",
}

func Default() *Config {
	return &Config{
		Node:      NodeConfig{},
		Transport: defaultTransport,
		Cache:     defaultCache,
		Metrics:   defaultMetrics,
		Log:       defaultLog,
	}
}

func (c *NodeConfig) PopulateDefaults() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
}

func (c *TransportConfig) PopulateDefaults() {
	if c.Codec == "" {
		c.Codec = defaultTransport.Codec
	}

	if c.Replicas == 0 {
		c.Replicas = defaultTransport.Replicas
	}

	if c.Copies == 0 {
		c.Copies = defaultTransport.Copies
	}
}

func (c *CacheConfig) PopulateDefaults() {
	if c.Shards == 0 {
		c.Shards = defaultCache.Shards
	}

	if c.ScaleThreshold == 0 {
		c.ScaleThreshold = defaultCache.ScaleThreshold
	}
}

func (c *MetricsConfig) PopulateDefaults() {
	if c.Namespace == "" {
		c.Namespace = defaultMetrics.Namespace
	}
}

func (c *LogConfig) PopulateDefaults() {
	if c.Level == "" {
		c.Level = defaultLog.Level
	}
}

func (c *Config) PopulateDefaults() {
	c.Node.PopulateDefaults()
	c.Transport.PopulateDefaults()
	c.Cache.PopulateDefaults()
	c.Metrics.PopulateDefaults()
	c.Log.PopulateDefaults()
}

package config

import "errors"

var ErrUnknownCodec = errors.New("unknown codec")
var ErrInvalidReplicas = errors.New("replicas must be positive")
var ErrInvalidCopies = errors.New("copies must be positive")
var ErrInvalidShards = errors.New("cache shards must be positive")
var ErrUnknownLogLevel = errors.New("unknown log level")
var ErrConfigIsNil = errors.New("config is nil")

package fury

import "github.com/sirupsen/logrus"

// CompatibleMode selects how struct payloads are laid out.
type CompatibleMode int

const (
	// SchemaConsistent writes field values only and expects an identical layout
	// on the reading side.
	SchemaConsistent CompatibleMode = iota
	// Compatible writes a schema ahead of the values and matches fields by name.
	Compatible
)

func (m CompatibleMode) String() string {
	if m == Compatible {
		return "compatible"
	}
	return "schema-consistent"
}

// Config holds the engine settings. The zero Config is usable; New fills in the
// limits that are left at zero.
type Config struct {
	RefTracking         bool
	Mode                CompatibleMode
	MetaShare           bool
	RequireRegistration bool

	MaxDepth          int
	MaxCollectionSize int
	MaxBinarySize     int

	// NativeFallback lets types that only gob knows how to encode go through gob.
	NativeFallback bool

	Logger logrus.FieldLogger
}

// Option configures a Fury engine.
type Option func(*Config)

func WithRefTracking(enabled bool) Option {
	return func(c *Config) { c.RefTracking = enabled }
}

func WithCompatibleMode(mode CompatibleMode) Option {
	return func(c *Config) { c.Mode = mode }
}

func WithMetaShare(enabled bool) Option {
	return func(c *Config) { c.MetaShare = enabled }
}

func WithRequireRegistration(enabled bool) Option {
	return func(c *Config) { c.RequireRegistration = enabled }
}

func WithMaxDepth(depth int) Option {
	return func(c *Config) { c.MaxDepth = depth }
}

func WithMaxCollectionSize(n int) Option {
	return func(c *Config) { c.MaxCollectionSize = n }
}

func WithMaxBinarySize(n int) Option {
	return func(c *Config) { c.MaxBinarySize = n }
}

func WithNativeFallback(enabled bool) Option {
	return func(c *Config) { c.NativeFallback = enabled }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) { c.Logger = l }
}

func defaultConfig() Config {
	return Config{
		RefTracking:         true,
		Mode:                SchemaConsistent,
		RequireRegistration: true,
		NativeFallback:      true,
	}
}

func (c *Config) normalize() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxCollectionSize <= 0 {
		c.MaxCollectionSize = defaultMaxCollectionSize
	}
	if c.MaxBinarySize <= 0 {
		c.MaxBinarySize = defaultMaxBinarySize
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

func (c *Config) headerFlags() byte {
	var f byte
	if c.RefTracking {
		f |= flagRefTracking
	}
	if c.Mode == Compatible {
		f |= flagCompatible
	}
	if c.MetaShare {
		f |= flagMetaShare
	}
	if c.RequireRegistration {
		f |= flagStrict
	}
	return f
}

package config

import "time"

// DomainConfig holds the business limits applied by context transfer and export
type DomainConfig struct {
	// Graph constraints
	DefaultGraphName   string
	MaxGraphNameLength int
	MaxColorsLength    int

	// Node constraints
	MaxTitleLength  int
	MaxPayloadBytes int

	// Context transfer
	MaxContextMessageRunes int
	SpawnedSessionTitle    string
	AtomicEdgeTransfer     bool

	// Export
	DefaultMaxMessages int
	MaxMessageRunes    int
	DiagramLabelRunes  int
	ExportCacheTTL     time.Duration
	SummaryTimeout     time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		DefaultGraphName:   "Untitled Graph",
		MaxGraphNameLength: 200,
		MaxColorsLength:    64,

		MaxTitleLength:  200,
		MaxPayloadBytes: 256 * 1024,

		MaxContextMessageRunes: 8000,
		SpawnedSessionTitle:    "Context session",
		AtomicEdgeTransfer:     false,

		DefaultMaxMessages: 0, // unlimited
		MaxMessageRunes:    0, // no truncation
		DiagramLabelRunes:  60,
		ExportCacheTTL:     10 * time.Minute,
		SummaryTimeout:     30 * time.Second,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxPayloadBytes = 128 * 1024
	config.DefaultMaxMessages = 500

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxPayloadBytes = 1024 * 1024
	config.ExportCacheTTL = time.Minute

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks that the limits are usable
func (c *DomainConfig) Validate() error {
	switch {
	case c.MaxContextMessageRunes <= 0:
		return errInvalid("MaxContextMessageRunes must be positive")
	case c.DiagramLabelRunes <= 0:
		return errInvalid("DiagramLabelRunes must be positive")
	case c.MaxMessageRunes < 0 || c.DefaultMaxMessages < 0:
		return errInvalid("export limits cannot be negative")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "domain config: " + string(e) }

func errInvalid(msg string) error { return configError(msg) }

package config

import (
	"fmt"

	"graphstore/pkg/common"
)

// Well-known node states.
const (
	StateIce   = "ice"
	StateWater = "water"
	StateGas   = "gas"
)

// DefaultEventTypeID is the type id of resonance event nodes.
const DefaultEventTypeID = "codex.resonance.event"

// DomainConfig holds the store's business limits.
type DomainConfig struct {
	// Pagination
	DefaultTake int
	MaxTake     int

	// Node constraints
	MaxIDLength     int
	MaxTypeIDLength int
	MaxTitleLength  int
	MaxMetaKeys     int

	// Edge constraints
	MaxRoleLength        int
	AllowSelfConnections bool

	// EventTypeID selects nodes served by the events surface.
	EventTypeID string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		DefaultTake: common.DefaultTake,
		MaxTake:     common.MaxTakeCeiling,

		MaxIDLength:     256,
		MaxTypeIDLength: 128,
		MaxTitleLength:  1024,
		MaxMetaKeys:     256,

		MaxRoleLength:        128,
		AllowSelfConnections: true,

		EventTypeID: DefaultEventTypeID,
	}
}

// DevelopmentDomainConfig relaxes length limits for local experimentation.
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.MaxTitleLength = 64 * 1024
	cfg.MaxMetaKeys = 4096
	return cfg
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development", "test":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// LenientPolicy is the pagination policy for generic node/edge queries.
func (c *DomainConfig) LenientPolicy() common.LenientPolicy {
	return common.NewLenientPolicy(c.DefaultTake, c.MaxTake)
}

// StrictPolicy is the pagination policy for the events surface and the CLI.
func (c *DomainConfig) StrictPolicy() common.StrictPolicy {
	return common.NewStrictPolicy(c.DefaultTake, c.MaxTake)
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxTake <= 0 || c.MaxTake > common.MaxTakeCeiling {
		return fmt.Errorf("max take must be in 1..%d, got %d", common.MaxTakeCeiling, c.MaxTake)
	}
	if c.DefaultTake <= 0 || c.DefaultTake > c.MaxTake {
		return fmt.Errorf("default take must be in 1..%d, got %d", c.MaxTake, c.DefaultTake)
	}
	if c.EventTypeID == "" {
		return fmt.Errorf("event type id is required")
	}
	return nil
}

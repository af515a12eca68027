package rig

import (
	"strings"
	"time"
)

const (
	DefaultPrimary      = "Fridge"
	DefaultSecondary    = "Heater"
	DefaultInterval     = 10 * time.Second
	DefaultStartupDelay = 5 * time.Second
)

// Config names the roles used to build the combined view. Roles are matched
// by controller name.
type Config struct {
	Primary         string
	Secondary       string
	SecondaryPrefix string
	Interval        time.Duration
	StartupDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Primary:         DefaultPrimary,
		Secondary:       DefaultSecondary,
		SecondaryPrefix: prefixFor(DefaultSecondary),
		Interval:        DefaultInterval,
		StartupDelay:    DefaultStartupDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.Primary == "" {
		c.Primary = DefaultPrimary
	}
	if c.Secondary == "" {
		c.Secondary = DefaultSecondary
	}
	if c.SecondaryPrefix == "" {
		c.SecondaryPrefix = prefixFor(c.Secondary)
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = DefaultStartupDelay
	}

	return c
}

func prefixFor(secondary string) string {
	return strings.ToLower(secondary) + "_"
}

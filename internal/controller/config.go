package controller

import (
	"time"

	"codeberg.org/mutker/brewctl/internal/history"
)

const (
	DefaultSetpoint     = 67.0
	DefaultInterval     = 10 * time.Second
	DefaultStartupDelay = 5 * time.Second

	SystemName = "System"
)

type Config struct {
	Setpoint     float64
	Enabled      bool
	Interval     time.Duration
	StartupDelay time.Duration
	HistorySize  int
}

func DefaultConfig() Config {
	return Config{
		Setpoint:     DefaultSetpoint,
		Enabled:      true,
		Interval:     DefaultInterval,
		StartupDelay: DefaultStartupDelay,
		HistorySize:  history.DefaultCapacity,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = d.StartupDelay
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}

	return c
}

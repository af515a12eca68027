package config

import (
	"fmt"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
)

// Validate checks field ranges and that every name a controller, rig or
// connection refers to is defined.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, string(c.LogLevel))
	}
	if c.Interval < MinInterval {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}
	if c.StartupDelay < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "startupDelay "+c.StartupDelay.String())
	}
	if c.HistorySize < 0 {
		return invalid("historySize must not be negative")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.DBPath == "" {
			return invalid("telemetry.dbPath is required when telemetry is enabled")
		}
		if c.Telemetry.BatchSize <= 0 {
			return invalid("telemetry.batchSize must be positive")
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return invalid("mqtt.broker is required when mqtt is enabled")
	}

	names := map[string]string{}
	sensors := map[string]bool{}
	actors := map[string]bool{}
	register := func(kind, name string) error {
		if prev, ok := names[name]; ok {
			return invalid(fmt.Sprintf("%s %q already defined as %s", kind, name, prev))
		}
		names[name] = kind
		return nil
	}

	for _, s := range c.Sensors {
		if s.Plugin == "" {
			return invalid(fmt.Sprintf("sensor %q has no plugin", s.Name))
		}
		if err := register("sensor", s.Name); err != nil {
			return err
		}
		sensors[s.Name] = true
	}
	for _, a := range c.Actors {
		if a.Plugin == "" {
			return invalid(fmt.Sprintf("actor %q has no plugin", a.Name))
		}
		if err := register("actor", a.Name); err != nil {
			return err
		}
		actors[a.Name] = true
	}
	for _, e := range c.Extensions {
		if err := register("extension", e.Name); err != nil {
			return err
		}
	}

	controllers := map[string]bool{}
	for _, cc := range c.Controllers {
		switch {
		case cc.Name == "System":
			return invalid(`controller name "System" is reserved`)
		case cc.Plugin == "":
			return invalid(fmt.Sprintf("controller %q has no plugin", cc.Name))
		case !sensors[cc.Sensor]:
			return invalid(fmt.Sprintf("controller %q: unknown sensor %q", cc.Name, cc.Sensor))
		case !actors[cc.Actor]:
			return invalid(fmt.Sprintf("controller %q: unknown actor %q", cc.Name, cc.Actor))
		case cc.BackupSensor != "" && !sensors[cc.BackupSensor]:
			return invalid(fmt.Sprintf("controller %q: unknown backup sensor %q", cc.Name, cc.BackupSensor))
		case cc.Agitator != "" && !actors[cc.Agitator]:
			return invalid(fmt.Sprintf("controller %q: unknown agitator %q", cc.Name, cc.Agitator))
		}
		if _, err := cc.Enabled(); err != nil {
			return invalid(fmt.Sprintf("controller %q: bad initialState %v", cc.Name, cc.InitialState))
		}
		if err := register("controller", cc.Name); err != nil {
			return err
		}
		controllers[cc.Name] = true
	}

	for _, rc := range c.Rigs {
		if len(rc.Controllers) == 0 {
			return invalid(fmt.Sprintf("rig %q has no controllers", rc.Name))
		}
		for _, name := range rc.Controllers {
			if !controllers[name] {
				return invalid(fmt.Sprintf("rig %q: unknown controller %q", rc.Name, name))
			}
		}
		if err := register("rig", rc.Name); err != nil {
			return err
		}
	}

	for _, conn := range c.Connections {
		if _, err := event.ParseRule(conn); err != nil {
			return errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	return nil
}

func invalid(reason string) error {
	return errors.New().WithData(errors.ErrInvalidConfig, reason)
}

// Package controller runs the control loop for one temperature zone.
package controller

import (
	"context"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/history"
	"codeberg.org/mutker/brewctl/internal/logger"
)

// Components are the capabilities a controller drives. BackupSensor and
// Agitator are optional.
type Components struct {
	Sensor       device.Sensor
	Actor        device.Actor
	Logic        device.Logic
	BackupSensor device.Sensor
	Agitator     device.Actor
}

// Controller owns one zone. Ticks and command dispatch are serialized, so a
// command arriving mid-interval is seen by the next tick.
type Controller struct {
	name   string
	parts  Components
	admin  AdminHandler
	system bool
	cfg    Config
	bus    event.Publisher
	log    logger.Logger
	now    func() time.Time

	obsMu     sync.RWMutex
	notifiers []Notifier
	recorder  Recorder

	mu        sync.Mutex
	enabled   bool
	automatic bool
	setpoint  float64
	history   *history.History
	rig       string
}

// New creates a controller and announces its initial setpoint, enabled and
// automatic state.
func New(name string, parts Components, bus event.Publisher, cfg Config) (*Controller, error) {
	errFactory := errors.New()

	switch {
	case parts.Sensor == nil:
		return nil, errFactory.WithData(ErrMissingComponent, name+": sensor")
	case parts.Actor == nil:
		return nil, errFactory.WithData(ErrMissingComponent, name+": actor")
	case parts.Logic == nil:
		return nil, errFactory.WithData(ErrMissingComponent, name+": logic")
	}

	c := newController(name, bus, cfg)
	c.parts = parts
	c.announce()

	return c, nil
}

// NewSystem creates the controller that carries host administration
// commands. It has no sensor, actor or history and only broadcasts.
func NewSystem(bus event.Publisher, admin AdminHandler, cfg Config) *Controller {
	c := newController(SystemName, bus, cfg)
	c.system = true
	c.admin = admin
	c.announce()

	return c
}

func newController(name string, bus event.Publisher, cfg Config) *Controller {
	cfg = cfg.withDefaults()

	return &Controller{
		name:      name,
		cfg:       cfg,
		bus:       bus,
		log:       logger.New("controller"),
		now:       time.Now,
		enabled:   cfg.Enabled,
		automatic: true,
		setpoint:  cfg.Setpoint,
		history:   history.New(cfg.HistorySize),
	}
}

func (c *Controller) announce() {
	c.publish("initialSetpoint", c.setpoint)
	c.publish("enabled", c.enabled)
	c.publish("automatic", c.automatic)
}

func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) IsSystem() bool {
	return c.system
}

// AddNotifier registers an observer of the per-tick broadcast. It takes
// effect from the next tick.
func (c *Controller) AddNotifier(n Notifier) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	c.notifiers = append(c.notifiers, n)
}

// SetRecorder attaches a sink for history samples.
func (c *Controller) SetRecorder(r Recorder) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	c.recorder = r
}

// SetRig records the name of the enclosing rig.
func (c *Controller) SetRig(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rig = name
}

func (c *Controller) Rig() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rig
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.enabled
}

func (c *Controller) Automatic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.automatic
}

func (c *Controller) Setpoint() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setpoint
}

// SetSetpoint updates the target temperature and publishes "setpoint".
func (c *Controller) SetSetpoint(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setSetpoint(v)
}

// SetEnabled sets the enabled flag, forces the actor to zero power and
// publishes "enabled" even if the value did not change.
func (c *Controller) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setEnabled(on)
	c.applyPower(0)
}

// SetAutomatic forces the actor to zero power, sets the automatic flag and
// publishes "automatic" even if the value did not change.
func (c *Controller) SetAutomatic(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyPower(0)
	c.automatic = on
	c.publish("automatic", on)
	c.log.Info().Str("controller", c.name).Bool("automatic", on).Msg("Setting automatic")
}

// Dispatch handles one inbound command. Malformed payloads are rejected
// without changing state. Endpoints nobody recognizes are logged and
// ignored.
func (c *Controller) Dispatch(endpoint string, payload any) error {
	if c.system {
		return c.dispatchSystem(endpoint, payload)
	}

	switch endpoint {
	case "state", "enabled":
		on, err := device.ToBool(payload)
		if err != nil {
			return c.rejected(endpoint, err)
		}
		c.SetEnabled(on)
	case "automatic":
		on, err := device.ToBool(payload)
		if err != nil {
			return c.rejected(endpoint, err)
		}
		c.SetAutomatic(on)
	case "setpoint":
		v, err := device.ToFloat(payload)
		if err != nil {
			return c.rejected(endpoint, err)
		}
		c.SetSetpoint(v)
	case "power":
		v, err := device.ToFloat(payload)
		if err != nil {
			return c.rejected(endpoint, err)
		}
		c.mu.Lock()
		c.applyPower(v)
		c.mu.Unlock()
		c.log.Info().Str("controller", c.name).Float64("power", v).Msg("Setting power")
	case "agitating":
		v, err := device.ToFloat(payload)
		if err != nil {
			return c.rejected(endpoint, err)
		}
		c.agitate(v)
	default:
		return c.dispatchLogic(endpoint, payload)
	}

	return nil
}

func (c *Controller) dispatchLogic(endpoint string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.parts.Logic.Dispatch(endpoint, payload)
	switch {
	case err == nil:
		return nil
	case errors.HasCode(err, device.ErrUnknownEndpoint):
		c.log.Warn().Str("controller", c.name).Str("endpoint", endpoint).Msg("Ignoring unknown endpoint")
		return nil
	default:
		return c.rejected(endpoint, err)
	}
}

func (c *Controller) agitate(fraction float64) {
	if c.parts.Agitator == nil {
		c.log.Warn().Str("controller", c.name).Msg("No agitator configured")
		return
	}

	percent := device.ClampPower(fraction * 100)
	if err := c.parts.Agitator.UpdatePower(percent); err != nil {
		c.log.Warn().Err(err).Str("controller", c.name).Msg("Agitator write failed")
	}
}

func (c *Controller) dispatchSystem(endpoint string, payload any) error {
	if endpoint != "admin" {
		c.log.Warn().Str("controller", c.name).Str("endpoint", endpoint).Msg("Unhandled endpoint")
		return nil
	}

	cmd, _ := payload.(string)
	var (
		run   func() error
		state string
	)
	switch cmd {
	case "reboot":
		run, state = c.admin.Reboot, "rebooting"
	case "poweroff":
		run, state = c.admin.PowerOff, "powering_off"
	default:
		c.log.Warn().Str("controller", c.name).Interface("command", payload).Msg("Unknown admin command")
		return nil
	}

	c.log.Info().Str("controller", c.name).Str("command", cmd).Msg("Admin command received")
	if err := run(); err != nil {
		wrapped := errors.New().Wrap(ErrAdminFailed, err)
		c.log.ErrorWithCode(wrapped).Str("command", cmd).Msg("Admin command failed")
		return wrapped
	}
	c.publish("admin", state)

	return nil
}

func (c *Controller) rejected(endpoint string, err error) error {
	var appErr errors.Error
	if !errors.As(err, &appErr) {
		appErr = errors.New().Wrap(ErrInvalidPayload, err)
	}
	c.log.WarnWithCode(appErr).Str("controller", c.name).Str("endpoint", endpoint).Msg("Rejected command")

	return appErr
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	if c.system {
		return Snapshot{Name: c.name, System: true}
	}

	c.mu.Lock()
	snap := Snapshot{
		Name:      c.name,
		Enabled:   c.enabled,
		Automatic: c.automatic,
		Setpoint:  c.setpoint,
	}
	c.mu.Unlock()

	r := c.readings()
	snap.Temperature = optional(r.Temperature)
	snap.W1Temperature = optional(r.BackupTemperature)
	snap.Gravity = optional(r.Gravity)
	snap.ABV = optional(r.ABV)
	snap.Attenuation = optional(r.Attenuation)
	snap.OriginalGravity = optional(r.OriginalGravity)
	if p, err := c.parts.Actor.Power(); err == nil {
		snap.Power = &p
	}

	return snap
}

// History returns a copy of the recorded series.
func (c *Controller) History() history.Series {
	return c.history.Series()
}

// Run ticks every interval after the startup delay until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(c.cfg.StartupDelay):
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		c.Tick()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one control cycle: actuate, record, then broadcast. The
// broadcast happens even when actuation was skipped.
func (c *Controller) Tick() {
	c.obsMu.RLock()
	recorder, notifiers := c.recorder, c.notifiers
	c.obsMu.RUnlock()

	if !c.system {
		if sample, ok := c.step(); ok && recorder != nil {
			recorder.Record(c.name, sample)
		}
	}

	snap := c.Snapshot()
	for _, n := range notifiers {
		n.NotifyController(snap)
	}
}

func (c *Controller) step() (history.Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	temp, err := c.parts.Sensor.Temperature()
	if err != nil {
		c.log.Warn().Err(err).Str("controller", c.name).Msg("No sensor reading, skipping cycle")
		return history.Sample{}, false
	}

	output, err := c.parts.Actor.Power()
	if err != nil {
		c.log.Warn().Err(err).Str("controller", c.name).Msg("Actor read failed, skipping cycle")
		return history.Sample{}, false
	}

	if c.enabled {
		if c.automatic {
			output = c.parts.Logic.Calc(temp, c.setpoint)
		}
		if err := c.parts.Actor.UpdatePower(output); err != nil {
			c.log.Warn().Err(err).Str("controller", c.name).Msg("Actor write failed, skipping cycle")
			return history.Sample{}, false
		}
	}

	sample := c.readings()
	sample.Timestamp = c.now()
	sample.Power = output
	sample.Temperature = temp
	sample.Setpoint = c.setpoint
	c.history.Record(sample)

	return sample, true
}

// readings collects the cached sensor values, NaN where unavailable.
func (c *Controller) readings() history.Sample {
	s := history.Sample{
		Temperature:       read(c.parts.Sensor.Temperature),
		BackupTemperature: math.NaN(),
		Gravity:           math.NaN(),
		ABV:               math.NaN(),
		Attenuation:       math.NaN(),
		OriginalGravity:   math.NaN(),
	}
	if c.parts.BackupSensor != nil {
		s.BackupTemperature = read(c.parts.BackupSensor.Temperature)
	}
	if h, ok := c.parts.Sensor.(device.Hydrometer); ok {
		s.Gravity = read(h.Gravity)
		s.ABV = read(h.ABV)
		s.Attenuation = read(h.Attenuation)
		s.OriginalGravity = read(h.OriginalGravity)
	}

	return s
}

func (c *Controller) setEnabled(on bool) {
	c.enabled = on
	if !on {
		c.applyPower(0)
	}
	c.publish("enabled", on)
	c.log.Info().Str("controller", c.name).Bool("enabled", on).Msg("Setting enabled")
}

func (c *Controller) setSetpoint(v float64) {
	c.setpoint = v
	c.publish("setpoint", v)
	c.log.Info().Str("controller", c.name).Float64("setpoint", v).Msg("Setting setpoint")
}

func (c *Controller) applyPower(percent float64) {
	if err := c.parts.Actor.UpdatePower(percent); err != nil {
		c.log.Warn().Err(err).Str("controller", c.name).Float64("power", percent).Msg("Actor write failed")
	}
}

func (c *Controller) publish(endpoint string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(event.Event{Source: c.name, Endpoint: endpoint, Payload: payload})
}

func read(fn func() (float64, error)) float64 {
	v, err := fn()
	if err != nil {
		return math.NaN()
	}

	return v
}

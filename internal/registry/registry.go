// Package registry builds every configured component and wires them
// together. Lookups are read-only once Build returns.
package registry

import (
	"sort"

	"codeberg.org/mutker/brewctl/internal/config"
	"codeberg.org/mutker/brewctl/internal/controller"
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
	"codeberg.org/mutker/brewctl/internal/logic"
	"codeberg.org/mutker/brewctl/internal/rig"
	"codeberg.org/mutker/brewctl/internal/system"
)

type Option func(*Registry)

// WithSensorPlugin adds or replaces a sensor factory.
func WithSensorPlugin(plugin string, f SensorFactory) Option {
	return func(r *Registry) {
		r.sensorPlugins[plugin] = f
	}
}

// WithActorPlugin adds or replaces an actor factory.
func WithActorPlugin(plugin string, f ActorFactory) Option {
	return func(r *Registry) {
		r.actorPlugins[plugin] = f
	}
}

// WithAdmin sets the handler for System admin commands. Without it admin
// commands are only logged.
func WithAdmin(a controller.AdminHandler) Option {
	return func(r *Registry) {
		r.admin = a
	}
}

// WithRecorder attaches r to every controller's sample stream.
func WithRecorder(rec controller.Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

type Registry struct {
	bus *event.Bus
	log logger.Logger

	sensorPlugins map[string]SensorFactory
	actorPlugins  map[string]ActorFactory
	admin         controller.AdminHandler
	recorder      controller.Recorder

	components  map[string]any
	sensors     []string
	actors      []string
	controllers []*controller.Controller
	rigs        []*rig.Rig
}

func New(bus *event.Bus, opts ...Option) *Registry {
	r := &Registry{
		bus:           bus,
		log:           logger.New("registry"),
		sensorPlugins: defaultSensors(),
		actorPlugins:  defaultActors(),
		components:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.admin == nil {
		r.admin = system.New(system.Config{})
	}

	return r
}

// Build constructs sensors, actors, controllers, the System controller and
// rigs, forces every actor off and registers the connection rules.
func (r *Registry) Build(cfg *config.Config) error {
	if err := r.buildSensors(cfg.Sensors); err != nil {
		return err
	}
	if err := r.buildActors(cfg.Actors); err != nil {
		return err
	}
	for _, ext := range cfg.Extensions {
		r.log.Warn().Str("name", ext.Name).Str("plugin", ext.Plugin).Msg("Unsupported extension, skipping")
	}
	if err := r.allActorsOff(); err != nil {
		return err
	}
	if err := r.buildControllers(cfg); err != nil {
		return err
	}
	if err := r.buildRigs(cfg); err != nil {
		return err
	}
	r.connect(cfg.Connections)

	return nil
}

func (r *Registry) buildSensors(list []config.Component) error {
	errFactory := errors.New()

	for _, c := range list {
		factory, ok := r.sensorPlugins[c.Plugin]
		if !ok {
			return errFactory.WithData(ErrUnknownPlugin, c.Name+": "+c.Plugin)
		}

		r.log.Info().Str("name", c.Name).Str("plugin", c.Plugin).Msg("Setting up sensor")
		s, err := factory(c.Name, c.Settings, r.bus)
		if err != nil {
			return errFactory.Wrap(ErrBuildComponent, err).WithMessage("sensor " + c.Name)
		}
		r.components[c.Name] = s
		r.sensors = append(r.sensors, c.Name)
	}

	if len(list) == 0 {
		r.log.Warn().Msg("No sensors")
	}

	return nil
}

func (r *Registry) buildActors(list []config.Component) error {
	errFactory := errors.New()

	for _, c := range list {
		factory, ok := r.actorPlugins[c.Plugin]
		if !ok {
			return errFactory.WithData(ErrUnknownPlugin, c.Name+": "+c.Plugin)
		}

		r.log.Info().Str("name", c.Name).Str("plugin", c.Plugin).Msg("Setting up actor")
		a, err := factory(c.Name, c.Settings, r.bus)
		if err != nil {
			return errFactory.Wrap(ErrBuildComponent, err).WithMessage("actor " + c.Name)
		}
		r.components[c.Name] = a
		r.actors = append(r.actors, c.Name)
	}

	if len(list) == 0 {
		r.log.Warn().Msg("No actors")
	}

	return nil
}

func (r *Registry) allActorsOff() error {
	for _, name := range r.actors {
		a, _ := r.Actor(name)
		if err := a.Off(); err != nil {
			return errors.New().Wrap(ErrActorsOff, err).WithMessage("actor " + name)
		}
		r.log.Debug().Str("actor", name).Msg("Actor initialized to off")
	}

	return nil
}

func (r *Registry) buildControllers(cfg *config.Config) error {
	errFactory := errors.New()

	for _, cc := range cfg.Controllers {
		r.log.Info().Str("name", cc.Name).Str("plugin", cc.Plugin).Msg("Setting up controller")

		l, err := logic.New(logic.Kind(cc.Plugin), cc.LogicCoeffs)
		if err != nil {
			return errFactory.Wrap(ErrBuildComponent, err).WithMessage("controller " + cc.Name)
		}

		parts := controller.Components{Logic: l}
		if parts.Sensor, err = r.sensor(cc.Sensor); err != nil {
			return err
		}
		if parts.Actor, err = r.actor(cc.Actor); err != nil {
			return err
		}
		if cc.BackupSensor != "" {
			if parts.BackupSensor, err = r.sensor(cc.BackupSensor); err != nil {
				return err
			}
		}
		if cc.Agitator != "" {
			if parts.Agitator, err = r.actor(cc.Agitator); err != nil {
				return err
			}
		}

		enabled, err := cc.Enabled()
		if err != nil {
			return errFactory.Wrap(ErrBuildComponent, err).WithMessage("controller " + cc.Name + " initialState")
		}

		c, err := controller.New(cc.Name, parts, r.bus, controller.Config{
			Setpoint:     cc.Setpoint(),
			Enabled:      enabled,
			Interval:     cfg.Interval,
			StartupDelay: cfg.StartupDelay,
			HistorySize:  cfg.HistorySize,
		})
		if err != nil {
			return err
		}
		if r.recorder != nil {
			c.SetRecorder(r.recorder)
		}
		r.announceParameters(cc.Name, l)

		r.components[cc.Name] = c
		r.controllers = append(r.controllers, c)
	}

	r.log.Info().Msg("Setting up controller: System")
	sys := controller.NewSystem(r.bus, r.admin, controller.Config{
		Interval:     cfg.Interval,
		StartupDelay: cfg.StartupDelay,
	})
	r.components[sys.Name()] = sys
	r.controllers = append(r.controllers, sys)

	return nil
}

// announceParameters publishes <controller>.<parameter> for each tuning
// value the logic exposes, so dashboards start from the configured margins.
func (r *Registry) announceParameters(name string, l device.Logic) {
	t, ok := l.(logic.Tunable)
	if !ok {
		return
	}

	params := t.Parameters()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		r.bus.Publish(event.Event{Source: name, Endpoint: k, Payload: params[k]})
	}
}

func (r *Registry) buildRigs(cfg *config.Config) error {
	for _, rc := range cfg.Rigs {
		r.log.Info().Str("name", rc.Name).Strs("controllers", rc.Controllers).Msg("Setting up rig")

		members := make([]rig.Member, 0, len(rc.Controllers))
		for _, name := range rc.Controllers {
			c, ok := r.Controller(name)
			if !ok {
				return errors.New().WithData(ErrUnknownComponent, "rig "+rc.Name+": "+name)
			}
			members = append(members, c)
		}

		rg, err := rig.New(rc.Name, members, rig.Config{
			Primary:         rc.Primary,
			Secondary:       rc.Secondary,
			SecondaryPrefix: rc.SecondaryPrefix,
			Interval:        cfg.Interval,
			StartupDelay:    cfg.StartupDelay,
		})
		if err != nil {
			return err
		}
		r.rigs = append(r.rigs, rg)
	}

	return nil
}

// connect registers each rule on the bus. Rules naming a component that does
// not exist or accepts no commands are skipped with a warning.
func (r *Registry) connect(rules []string) {
	if len(rules) == 0 {
		r.log.Warn().Msg("No connections")
		return
	}

	for _, s := range rules {
		rule, err := event.ParseRule(s)
		if err != nil {
			r.log.Warn().Err(err).Str("rule", s).Msg("Skipping connection")
			continue
		}

		if _, ok := r.components[rule.Source]; !ok {
			r.log.Warn().Str("rule", s).Msg("Connection source is not a known component")
		}

		dest, ok := r.components[rule.Dest].(event.Handler)
		if !ok {
			r.log.Warn().Str("rule", s).Msg("Connection destination accepts no commands, skipping")
			continue
		}

		r.bus.Connect(rule, dest)
		r.log.Debug().Str("rule", rule.String()).Msg("Connected")
	}
}

func (r *Registry) sensor(name string) (device.Sensor, error) {
	s, ok := r.Sensor(name)
	if !ok {
		return nil, errors.New().WithData(ErrUnknownComponent, "sensor "+name)
	}
	return s, nil
}

func (r *Registry) actor(name string) (device.Actor, error) {
	a, ok := r.Actor(name)
	if !ok {
		return nil, errors.New().WithData(ErrUnknownComponent, "actor "+name)
	}
	return a, nil
}

func (r *Registry) Sensor(name string) (device.Sensor, bool) {
	s, ok := r.components[name].(device.Sensor)
	return s, ok
}

func (r *Registry) Actor(name string) (device.Actor, bool) {
	a, ok := r.components[name].(device.Actor)
	return a, ok
}

func (r *Registry) Controller(name string) (*controller.Controller, bool) {
	c, ok := r.components[name].(*controller.Controller)
	return c, ok
}

// Controllers returns controllers in configuration order, System last.
func (r *Registry) Controllers() []*controller.Controller {
	return r.controllers
}

func (r *Registry) Rig(name string) (*rig.Rig, bool) {
	for _, rg := range r.rigs {
		if rg.Name() == name {
			return rg, true
		}
	}
	return nil, false
}

func (r *Registry) Rigs() []*rig.Rig {
	return r.rigs
}

// Runners returns every component with its own loop: polling sensors,
// controllers and rigs.
func (r *Registry) Runners() map[string]device.Runner {
	out := make(map[string]device.Runner)
	for _, name := range append(append([]string{}, r.sensors...), r.actors...) {
		if run, ok := r.components[name].(device.Runner); ok {
			out[name] = run
		}
	}
	for _, c := range r.controllers {
		out[c.Name()] = c
	}
	for _, rg := range r.rigs {
		out["rig:"+rg.Name()] = rg
	}

	return out
}

// Close switches actors off and releases drivers holding hardware. It
// returns the first error after attempting every driver.
func (r *Registry) Close() error {
	var first error
	for _, name := range r.actors {
		a, _ := r.Actor(name)
		if err := a.Off(); err != nil && first == nil {
			first = err
		}
	}
	for _, name := range append(append([]string{}, r.sensors...), r.actors...) {
		if c, ok := r.components[name].(device.Closer); ok {
			if err := c.Close(); err != nil {
				r.log.Warn().Err(err).Str("name", name).Msg("Failed to close driver")
				if first == nil {
					first = err
				}
			}
		}
	}

	return first
}

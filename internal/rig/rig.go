// Package rig presents a fixed group of controllers as one composite zone.
package rig

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/brewctl/internal/controller"
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/history"
	"codeberg.org/mutker/brewctl/internal/logger"
)

// Member is the part of a controller a rig relies on.
type Member interface {
	Name() string
	Snapshot() controller.Snapshot
	History() history.Series
	Dispatch(endpoint string, payload any) error
	SetRig(name string)
}

// Notifier receives the view broadcast on every rig tick.
type Notifier interface {
	NotifyRig(v View)
}

// View is the aggregate state of a rig. Details holds each member's
// snapshot; Combined flattens the primary and secondary roles.
type View struct {
	Name     string                         `json:"name"`
	Details  map[string]controller.Snapshot `json:"details"`
	Combined map[string]any                 `json:"combined"`
}

// Rig holds no state of its own; every view is recomputed from its members.
type Rig struct {
	name      string
	members   []Member
	byName    map[string]Member
	cfg       Config
	log       logger.Logger

	mu        sync.RWMutex
	notifiers []Notifier
}

func New(name string, members []Member, cfg Config) (*Rig, error) {
	if len(members) == 0 {
		return nil, errors.New().WithData(ErrNoMembers, name)
	}

	r := &Rig{
		name:    name,
		members: members,
		byName:  make(map[string]Member, len(members)),
		cfg:     cfg.withDefaults(),
		log:     logger.New("rig"),
	}
	for _, m := range members {
		r.byName[m.Name()] = m
		m.SetRig(name)
	}

	return r, nil
}

func (r *Rig) Name() string {
	return r.name
}

// Members returns member names in configuration order.
func (r *Rig) Members() []string {
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Name()
	}

	return names
}

// AddNotifier registers an observer of the per-tick broadcast. It takes
// effect from the next tick.
func (r *Rig) AddNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifiers = append(r.notifiers, n)
}

// Aggregate captures every member's current snapshot. Members are not
// paused; each contributes whatever it last computed.
func (r *Rig) Aggregate() View {
	details := make(map[string]controller.Snapshot, len(r.members))
	for _, m := range r.members {
		details[m.Name()] = m.Snapshot()
	}

	return View{
		Name:     r.name,
		Details:  details,
		Combined: r.combine(details),
	}
}

// Combined returns only the flattened view.
func (r *Rig) Combined() map[string]any {
	return r.Aggregate().Combined
}

func (r *Rig) combine(details map[string]controller.Snapshot) map[string]any {
	p := r.cfg.SecondaryPrefix
	out := map[string]any{
		"name":          r.name,
		"temperature":   nil,
		"w1temperature": nil,
		"gravity":       nil,
		"abv":           nil,
		"atten":         nil,
		"ograv":         nil,
		"enabled":       nil,
		"automatic":     nil,
		"power":         nil,
		"setpoint":      nil,
		p + "enabled":   nil,
		p + "automatic": nil,
		p + "power":     nil,
		p + "setpoint":  nil,
	}

	if s, ok := details[r.cfg.Primary]; ok {
		out["temperature"] = s.Temperature
		out["w1temperature"] = s.W1Temperature
		out["gravity"] = s.Gravity
		out["abv"] = s.ABV
		out["atten"] = s.Attenuation
		out["ograv"] = s.OriginalGravity
		out["enabled"] = s.Enabled
		out["automatic"] = s.Automatic
		out["power"] = s.Power
		out["setpoint"] = s.Setpoint
	}
	if s, ok := details[r.cfg.Secondary]; ok {
		out[p+"enabled"] = s.Enabled
		out[p+"automatic"] = s.Automatic
		out[p+"power"] = s.Power
		out[p+"setpoint"] = s.Setpoint
	}

	return out
}

// Histories returns each member's exported history keyed by name.
func (r *Rig) Histories() map[string]controller.HistoryExport {
	out := make(map[string]controller.HistoryExport, len(r.members))
	for _, m := range r.members {
		out[m.Name()] = controller.Export(m.History())
	}

	return out
}

// CombinedHistory returns the primary's history plus the secondary's power
// and setpoint under prefixed keys.
func (r *Rig) CombinedHistory() map[string]any {
	out := map[string]any{
		"label":         []float64{},
		"temperature":   []*float64{},
		"power":         []*float64{},
		"setpoint":      []*float64{},
		"w1temperature": []*float64{},
		"gravity":       []*float64{},
		"abv":           []*float64{},
		"atten":         []*float64{},
		"ograv":         []*float64{},
	}

	if m, ok := r.byName[r.cfg.Primary]; ok {
		e := controller.Export(m.History())
		out["label"] = e.Label
		out["temperature"] = e.Temperature
		out["power"] = e.Power
		out["setpoint"] = e.Setpoint
		out["w1temperature"] = e.W1Temperature
		out["gravity"] = e.Gravity
		out["abv"] = e.ABV
		out["atten"] = e.Atten
		out["ograv"] = e.OGrav
	}
	if m, ok := r.byName[r.cfg.Secondary]; ok {
		s := m.History()
		out[r.cfg.SecondaryPrefix+"power"] = controller.Nullable(s.Power)
		out[r.cfg.SecondaryPrefix+"setpoint"] = controller.Nullable(s.Setpoint)
	}

	return out
}

// Dispatch forwards a command to the named member. Unknown names are logged
// and dropped.
func (r *Rig) Dispatch(controllerName, endpoint string, payload any) error {
	m, ok := r.byName[controllerName]
	if !ok {
		r.log.Warn().Str("rig", r.name).Str("controller", controllerName).Msg("Unknown controller")
		return errors.New().WithData(ErrUnknownController, controllerName)
	}

	return m.Dispatch(endpoint, payload)
}

// DispatchDocument splits {"controller": name, endpoint: value, ...} into
// one Dispatch per endpoint, in document order. It returns the first error
// after attempting every endpoint.
func (r *Rig) DispatchDocument(doc device.Document) error {
	v, _ := doc.Get("controller")
	target, ok := v.(string)
	if !ok {
		r.log.Warn().Str("rig", r.name).Msg("Command without controller")
		return errors.New().WithData(ErrInvalidDocument, "missing controller")
	}

	var first error
	for _, cmd := range doc {
		if cmd.Endpoint == "controller" {
			continue
		}
		if err := r.Dispatch(target, cmd.Endpoint, cmd.Payload); err != nil {
			if errors.HasCode(err, ErrUnknownController) {
				return err
			}
			if first == nil {
				first = err
			}
		}
	}

	return first
}

// Run broadcasts the aggregate every interval after the startup delay.
func (r *Rig) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(r.cfg.StartupDelay):
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.Tick()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick recomputes and broadcasts the aggregate.
func (r *Rig) Tick() {
	r.mu.RLock()
	notifiers := r.notifiers
	r.mu.RUnlock()

	v := r.Aggregate()
	r.log.Debug().Str("rig", r.name).Int("members", len(v.Details)).Msg("Broadcasting rig view")
	for _, n := range notifiers {
		n.NotifyRig(v)
	}
}

package registry

import (
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/device/dummy"
	"codeberg.org/mutker/brewctl/internal/device/gpio"
	"codeberg.org/mutker/brewctl/internal/device/w1"
	"codeberg.org/mutker/brewctl/internal/event"
)

// SensorFactory builds a sensor driver from its configured settings.
type SensorFactory func(name string, settings map[string]any, bus event.Publisher) (device.Sensor, error)

// ActorFactory builds an actor driver from its configured settings.
type ActorFactory func(name string, settings map[string]any, bus event.Publisher) (device.Actor, error)

func defaultSensors() map[string]SensorFactory {
	return map[string]SensorFactory{
		"DummySensor": func(name string, settings map[string]any, bus event.Publisher) (device.Sensor, error) {
			var s dummy.SensorSettings
			if err := device.DecodeSettings(settings, &s); err != nil {
				return nil, err
			}
			return dummy.NewSensor(name, s, bus)
		},
		"W1Sensor": func(name string, settings map[string]any, bus event.Publisher) (device.Sensor, error) {
			var s w1.Settings
			if err := device.DecodeSettings(settings, &s); err != nil {
				return nil, err
			}
			return w1.New(name, s, bus)
		},
	}
}

func defaultActors() map[string]ActorFactory {
	return map[string]ActorFactory{
		"DummyActor": func(name string, _ map[string]any, bus event.Publisher) (device.Actor, error) {
			return dummy.NewActor(name, bus), nil
		},
		"GPIOActor": func(name string, settings map[string]any, bus event.Publisher) (device.Actor, error) {
			var s gpio.Settings
			if err := device.DecodeSettings(settings, &s); err != nil {
				return nil, err
			}
			return gpio.New(name, s, bus)
		},
	}
}

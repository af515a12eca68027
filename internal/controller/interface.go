package controller

import "codeberg.org/mutker/brewctl/internal/history"

// Notifier receives the snapshot broadcast at the end of every tick.
type Notifier interface {
	NotifyController(s Snapshot)
}

// Recorder receives every sample appended to a controller's history.
type Recorder interface {
	Record(controller string, s history.Sample)
}

// AdminHandler performs host power actions for the System controller.
type AdminHandler interface {
	Reboot() error
	PowerOff() error
}

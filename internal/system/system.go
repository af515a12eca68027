// Package system runs host power commands on behalf of the System controller.
package system

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const commandTimeout = 30 * time.Second

// Runner executes one command line.
type Runner func(ctx context.Context, name string, args ...string) error

type Config struct {
	Enabled         bool
	RebootCommand   string
	PoweroffCommand string
}

// Power reboots or powers off the host. When disabled it only logs.
type Power struct {
	cfg Config
	run Runner
	log logger.Logger
}

func New(cfg Config) *Power {
	return NewWithRunner(cfg, execRunner)
}

func NewWithRunner(cfg Config, run Runner) *Power {
	return &Power{cfg: cfg, run: run, log: logger.New("system")}
}

func (p *Power) Reboot() error {
	return p.exec("reboot", p.cfg.RebootCommand)
}

func (p *Power) PowerOff() error {
	return p.exec("poweroff", p.cfg.PoweroffCommand)
}

func (p *Power) exec(action, command string) error {
	errFactory := errors.New()

	if !p.cfg.Enabled {
		p.log.Warn().Str("action", action).Msg("Host commands disabled, ignoring")
		return nil
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return errFactory.WithData(errors.ErrMissingConfig, action+" command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	p.log.Info().Str("action", action).Str("command", command).Msg("Running host command")
	if err := p.run(ctx, fields[0], fields[1:]...); err != nil {
		return errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	return nil
}

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return errors.New().WithData(errors.ErrOperationFailed, strings.TrimSpace(string(out))+": "+err.Error())
	}

	return nil
}

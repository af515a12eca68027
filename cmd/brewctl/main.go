package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/brewctl/internal/config"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
	"codeberg.org/mutker/brewctl/internal/mqtt"
	"codeberg.org/mutker/brewctl/internal/pid"
	"codeberg.org/mutker/brewctl/internal/registry"
	"codeberg.org/mutker/brewctl/internal/system"
	"codeberg.org/mutker/brewctl/internal/telemetry"
	"codeberg.org/mutker/brewctl/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Str("file", cfg.ConfigFile).Msg("Config loaded")

	if err := run(cfg); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("Exiting on error")
		}
		logger.Fatal().Err(err).Msg("Exiting on error")
	}
	logger.Info().Msg("Exiting...")
}

func run(cfg *config.Config) error {
	errFactory := errors.New()

	pidFile := pid.New(cfg.PIDFile)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	tele, err := telemetry.NewService(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		DBPath:       cfg.Telemetry.DBPath,
		BatchSize:    cfg.Telemetry.BatchSize,
		BatchTimeout: cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	if tele != nil {
		defer func() {
			if err := tele.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close telemetry")
			}
		}()
	}

	bus := event.NewBus()
	reg := registry.New(bus,
		registry.WithAdmin(system.New(system.Config{
			Enabled:         cfg.System.Enabled,
			RebootCommand:   cfg.System.RebootCommand,
			PoweroffCommand: cfg.System.PoweroffCommand,
		})),
		registry.WithRecorder(tele.Recorder()),
	)
	if err := reg.Build(cfg); err != nil {
		return errFactory.Wrap(errors.ErrWiring, err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release drivers")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel)

	g, ctx := errgroup.WithContext(ctx)

	// Notifiers must be attached before any controller or rig starts ticking.
	if cfg.MQTT.Enabled {
		bridge, err := startBridge(cfg.MQTT, reg)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitApp, err)
		}
		g.Go(func() error { return bridge.Run(ctx) })
	}

	for name, r := range reg.Runners() {
		name, r := name, r
		g.Go(func() error {
			if err := r.Run(ctx); err != nil {
				logger.Error().Err(err).Str("task", name).Msg("Task stopped")
				return err
			}
			return nil
		})
	}

	if cfg.HTTP.Addr != "" {
		var webOpts []web.Option
		if tele != nil {
			webOpts = append(webOpts, web.WithTelemetry(tele))
		}
		srv := web.New(cfg.HTTP.Addr, reg, webOpts...)
		g.Go(func() error { return srv.Run(ctx) })
	}

	logger.Info().Int("controllers", len(reg.Controllers())).Int("rigs", len(reg.Rigs())).Msg("Started")

	err = g.Wait()
	bus.Wait()
	if err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	return nil
}

func startBridge(cfg config.MQTTConfig, reg *registry.Registry) (*mqtt.Bridge, error) {
	client, err := mqtt.Dial(mqtt.ClientConfig{
		Broker:      cfg.Broker,
		ClientID:    cfg.ClientID,
		Username:    cfg.Username,
		Password:    cfg.Password,
		StatusTopic: mqtt.StatusTopic(cfg.TopicPrefix),
	})
	if err != nil {
		return nil, err
	}

	bridge := mqtt.NewBridge(client, cfg.TopicPrefix)
	for _, c := range reg.Controllers() {
		c.AddNotifier(bridge)
		if err := bridge.HandleController(c.Name(), c); err != nil {
			client.Close()
			return nil, err
		}
	}
	for _, rg := range reg.Rigs() {
		rg.AddNotifier(bridge)
		if err := bridge.HandleRig(rg.Name(), rg); err != nil {
			client.Close()
			return nil, err
		}
	}

	return bridge, nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

package cmd

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/config"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/covers"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/dispatcher"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/homeassistant"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/mqtt"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/playnite"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/publisher"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/registry"
)

// expirySchedule drives the pending-command sweep; with seconds enabled this
// fires every ten seconds, well inside the command timeout.
const expirySchedule = "*/10 * * * * *"

// BridgeCommand is the main entry point for the bridge CLI command. It
// builds configuration from flags, wires the services and runs until the
// context is cancelled.
func BridgeCommand(ctx *cli.Context) error {
	cfg := &config.Config{
		MqttCfg: &config.MqttConfig{
			Broker:   ctx.String("mqtt-broker"),
			Port:     ctx.Int("mqtt-port"),
			Username: ctx.String("mqtt-user"),
			Password: ctx.String("mqtt-pass"),
			ClientID: ctx.String("mqtt-client-id"),
		},
		ImageCfg: &config.ImageConfig{
			MaxSizeBytes:   ctx.Int("max-image-size"),
			MinQuality:     ctx.Int("min-quality"),
			InitialQuality: ctx.Int("initial-quality"),
		},
		TopicBase: ctx.String("topic-base"),
		LogLevel:  ctx.String("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	errorChan := make(chan error, 100)
	reg := registry.New()

	client := mqtt.NewFromConfig(cfg.MqttCfg)
	disp := dispatcher.New(client, reg, cfg.TopicBase)
	ha := homeassistant.New(client, disp, cfg.TopicBase)
	if err := publisher.RegisterPlatform("homeassistant", ha); err != nil {
		return err
	}

	pipeline := covers.New(reg, cfg.ImageCfg)
	svc := playnite.New(cfg.TopicBase, client, reg, pipeline, disp, errorChan)

	if err := svc.Connect(); err != nil {
		return err
	}
	if err := ha.Setup(); err != nil {
		return err
	}

	return run(ctx.Context, svc, reg, errorChan, logger)
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = parsed
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// run supervises the running bridge: the command-expiry sweep and the async
// error drain. It returns when ctx is cancelled or an error is fatal enough
// to stop the process.
func run(ctx context.Context, svc BridgeService, reg *registry.Registry, errorChan chan error, logger *zap.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return sweepExpiredCommands(ctx, reg, logger)
	})

	eg.Go(func() error {
		// handle any async errors from the services
		for {
			select {
			case err := <-errorChan:
				logger.Error("service error", zap.Error(err),
					zap.String("session_state", string(svc.State())))
			case <-ctx.Done():
				logger.Info("context done")
				_ = svc.Close()
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// sweepExpiredCommands clears pending commands the feed never confirmed.
// Expiry is diagnostic only; display state is untouched.
func sweepExpiredCommands(ctx context.Context, reg *registry.Registry, logger *zap.Logger) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(expirySchedule, func() {
		for _, id := range reg.ExpireCommands(time.Now()) {
			logger.Info("pending command expired without confirmation",
				zap.String("game_id", id))
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

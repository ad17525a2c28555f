package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/health"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/probe"
	"github.com/vzahanych/barcode-scanner/internal/publisher"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
	"github.com/vzahanych/barcode-scanner/internal/telemetry"
	"github.com/vzahanych/barcode-scanner/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath, envFile string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.StringVar(&envFile, "env-file", ".env", "Optional file of SCANNER_* environment overrides")
	flag.Parse()

	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfgSvc, err := config.NewService(configPath, logger.NewNopLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgSvc.Get()

	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgSvc.SetLogger(log.Named("config"))

	log.Info("Starting barcode scanner",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"camera_backend", cfg.Camera.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcMgr := service.NewManager(log)

	devices, err := camera.NewMediaDevices(cfg.Camera, log.Named("camera"))
	if err != nil {
		log.Error("Failed to initialize camera back-end", "error", err)
		os.Exit(1)
	}
	cameras := camera.NewManager(devices, camera.ManagerConfigFrom(cfg.Camera), log.Named("camera"))

	opts, err := scanner.OptionsFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to build scanner options", "error", err)
		os.Exit(1)
	}
	controller := scanner.NewController(cameras, opts, log.Named("scanner"))
	svcMgr.Register(controller)

	cfgSvc.Watch(func(ctx context.Context, oldConfig, newConfig *config.Config) error {
		opts, err := scanner.OptionsFromConfig(newConfig, log)
		if err != nil {
			return err
		}
		controller.Reconfigure(opts)
		if err := log.SetLevel(newConfig.Log.Level); err != nil {
			log.Warn("Keeping log level", "level", log.Level(), "error", err)
		}
		if oldConfig.Camera != newConfig.Camera || oldConfig.MQTT != newConfig.MQTT || oldConfig.Web != newConfig.Web {
			log.Warn("Camera, web or MQTT settings changed; restart to apply them")
		}
		return nil
	})

	collector := telemetry.NewCollector(&cfg.Telemetry, log.Named("telemetry"), controller)
	svcMgr.Register(collector)

	healthMgr := health.NewManager(log.Named("health"), svcMgr)
	healthMgr.RegisterChecker(health.NewCameraChecker(cameras, cfg.Camera.Backend))
	healthMgr.RegisterChecker(health.NewDecoderChecker(func() bool {
		current := cfgSvc.Get()
		return probe.Accelerated(probe.HostEnvironment(current.Decode.Accelerated, current.Decode.ZBarPath))
	}))

	var broker publisher.Broker
	if cfg.MQTT.Enabled {
		pahoBroker := publisher.NewPahoBroker(cfg.MQTT, log.Named("mqtt"))
		healthMgr.RegisterChecker(health.NewBrokerChecker(pahoBroker, cfg.MQTT.Broker))
		broker = pahoBroker
	}
	svcMgr.Register(publisher.NewPublisher(cfg.MQTT, broker, log.Named("mqtt")))

	webServer := web.NewServer(&cfg.Web, log.Named("web"))
	webServer.SetVersion(version)
	webServer.SetScanner(controller)
	webServer.SetConfigDependency(cfgSvc)
	webServer.SetHealthReporter(healthMgr)
	webServer.SetTelemetryDependency(collector)
	svcMgr.Register(webServer)

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := cfgSvc.Reload(ctx); err != nil {
				log.Error("Failed to reload configuration", "error", err)
				continue
			}
			svcMgr.GetEventBus().Publish(service.Event{
				Type:   service.EventTypeConfigReloaded,
				Source: "main",
				Data:   map[string]interface{}{"source": "signal"},
			})
			continue
		}

		log.Info("Received shutdown signal", "signal", sig)
		break
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete", "camera", cameras.Stats())
}

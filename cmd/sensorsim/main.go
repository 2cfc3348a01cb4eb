// Command sensorsim runs a simulated IoT sensor fleet, writing readings to the
// configured sinks and serving the anomaly control API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/config"
	"github.com/synaptecltd/sensorsim/control"
	"github.com/synaptecltd/sensorsim/metrics"
	"github.com/synaptecltd/sensorsim/sensor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

func main() {
	var (
		envFile     = flag.String("env", "", "read variables from this file instead of ./.env")
		dumpCatalog = flag.Bool("dump-catalog", false, "print the effective anomaly catalog as YAML and exit")
		demo        = flag.Bool("demo", false, "force a demo anomaly every 20 cycles")
		withoutHTTP = flag.Bool("no-control", false, "do not start the control server")
	)
	flag.Parse()

	if err := run(*envFile, *dumpCatalog, *demo, *withoutHTTP); err != nil {
		fmt.Fprintln(os.Stderr, "sensorsim:", err)
		os.Exit(1)
	}
}

func run(envFile string, dumpCatalog, demo, withoutHTTP bool) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	if demo {
		cfg.Demo = true
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	catalog := anomaly.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = anomaly.LoadCatalog(cfg.CatalogPath); err != nil {
			return err
		}
		logger.Info("catalog loaded", zap.String("path", cfg.CatalogPath))
	}
	if dumpCatalog {
		return yaml.NewEncoder(os.Stdout).Encode(catalog)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	collector := metrics.New(reg)

	fleet, err := emulator.NewFleet(cfg.Sensors,
		emulator.WithSeed(cfg.Seed),
		emulator.WithParallelism(cfg.Parallelism),
		emulator.WithLocation(sensor.Location(cfg.Location)),
		emulator.WithFleetLogger(logger),
		emulator.WithInjectorOptions(
			anomaly.WithCatalog(catalog),
			anomaly.WithObserver(collector),
		),
	)
	if err != nil {
		return err
	}
	if cfg.Anomalies {
		fleet.Controller().Enable(cfg.AnomalyRate)
	}

	sinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("closing sinks", zap.Error(err))
		}
	}()

	runner, err := emulator.NewRunner(fleet, cfg.RunnerParams(),
		emulator.WithWriters(sinks),
		emulator.WithTickObserver(collector),
		emulator.WithRunnerLogger(logger),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, finished := context.WithCancel(gctx)
	defer finished()

	if cfg.ControlAddr != "" && !withoutHTTP {
		gin.SetMode(gin.ReleaseMode)
		router := control.NewRouter(control.Dependencies{
			Controller:   fleet.Controller(),
			Fleet:        fleet,
			Gatherer:     reg,
			Logger:       logger,
			AllowOrigins: cfg.CORSOrigins,
		})
		g.Go(func() error {
			return control.Serve(runCtx, cfg.ControlAddr, router, logger)
		})
	}

	g.Go(func() error {
		defer finished()
		summary := runner.Run(runCtx)
		logger.Info("summary",
			zap.Int("cycles", summary.Cycles),
			zap.Int("readings", summary.Readings),
			zap.Int("anomalies_injected", summary.InjectedAnomalies),
			zap.Int("demo_anomalies", summary.ForcedAnomalies),
			zap.Int("active_anomalies", summary.ActiveAnomalies),
			zap.Int("write_failures", summary.WriteFailures))
		return nil
	})

	return g.Wait()
}

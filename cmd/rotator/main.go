// Package main provides the daemon entrypoint for client-secret-rotator
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/hixichen/client-secret-rotator/internal/controller"
	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/envstore"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/health"
	"github.com/hixichen/client-secret-rotator/pkg/lock"
	"github.com/hixichen/client-secret-rotator/pkg/metrics"
	"github.com/hixichen/client-secret-rotator/pkg/notify"
	"github.com/hixichen/client-secret-rotator/pkg/rotation"
	"github.com/hixichen/client-secret-rotator/pkg/scheduler"
	"github.com/hixichen/client-secret-rotator/pkg/supervisor"
)

// options holds command line settings.
type options struct {
	configPath string
	probeAddr  string
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

func main() {
	opts := options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}

	// Parse flags
	flag.StringVar(&opts.configPath, "config", "", "Path to the configuration file. Defaults to "+constants.DefaultConfigPath+" when present, otherwise defaults and environment.")
	flag.StringVar(&opts.probeAddr, "health-probe-bind-address", "", "The address the probe and metrics endpoint binds to. Overrides server.probeAddr.")

	zapOpts := zap.Options{
		Development: true,
	}
	zapOpts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrllog.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	logger := slog.Default().With("app", constants.AppName)

	if opts.configPath == "" {
		if _, err := os.Stat(constants.DefaultConfigPath); err == nil {
			opts.configPath = constants.DefaultConfigPath
		}
	}

	if err := run(ctrl.SetupSignalHandler(), opts, logger); err != nil {
		logger.Error("rotator exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires the components and blocks until ctx is cancelled.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	// Load config
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.probeAddr != "" {
		cfg.Server.ProbeAddr = opts.probeAddr
	}

	env, err := config.LoadEnv(cfg.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	secrets := config.LoadSecretConfig(env)

	dailyAt, err := scheduler.ParseTimeOfDay(cfg.Rotation.DailyAt)
	if err != nil {
		return fmt.Errorf("invalid dailyAt: %w", err)
	}

	var store iface.Store
	if cfg.StoreConfigured() {
		store, err = envstore.NewFactory(logger).Create(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
	} else {
		secrets = secrets.WithMissing(config.FieldEnvFilePath)
	}

	met := metrics.New()
	if err := met.Register(opts.registerer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	h := health.New(logger)
	h.SetMetrics(met)
	if store != nil {
		controller.RegisterHealthChecks(h, store, cfg.Rotation.SecretKey)
	}

	sched := scheduler.New(logger)

	var checker controller.Checker
	if secrets.Enabled() {
		mgr, cleanup, err := initializeRotationManager(ctx, cfg, secrets, store, met, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize rotation manager: %w", err)
		}
		defer cleanup()
		checker = mgr
	}

	controller.Setup(sched, secrets, checker, controller.Config{
		DailyAt:      dailyAt,
		RunAtStartup: cfg.Rotation.RunAtStartup,
	}, logger)

	logger.Info("starting rotator",
		"store", cfg.Store.Type,
		"secretKey", cfg.Rotation.SecretKey,
		"refreshThreshold", cfg.Rotation.RefreshThreshold,
		"probeAddr", cfg.Server.ProbeAddr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return health.Serve(gctx, cfg.Server.ProbeAddr, health.NewRouter(h, opts.gatherer), logger)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	return g.Wait()
}

// initializeRotationManager creates the rotation manager with its lock,
// notifiers and restarter. The returned cleanup closes their connections.
func initializeRotationManager(
	ctx context.Context,
	cfg *config.Config,
	secrets config.SecretConfigResult,
	store iface.Store,
	met *metrics.Metrics,
	logger *slog.Logger,
) (*rotation.Manager, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var restarter supervisor.Restarter
	if cfg.Rotation.Restart {
		restarter = supervisor.NewExitRestarter(cfg.Rotation.RestartDelayDuration(), logger)
	} else {
		restarter = supervisor.NewNoopRestarter(logger)
	}

	mgr := rotation.NewManager(*secrets.Config, store, restarter, rotation.Config{
		RefreshThreshold: cfg.Rotation.RefreshThresholdDuration(),
		SecretKey:        cfg.Rotation.SecretKey,
	}, logger)
	mgr.SetMetrics(met)

	locker, closeLocker, err := initializeLocker(ctx, cfg.Lock, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeLocker)
	mgr.SetLocker(locker)

	notifier, closeNotifier, err := initializeNotifier(cfg.Notify, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeNotifier)
	mgr.SetNotifier(notifier)

	return mgr, cleanup, nil
}

// initializeLocker returns a redis lock when an address is configured and
// an in-process lock otherwise.
func initializeLocker(ctx context.Context, cfg config.LockConfig, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return lock.NewLocal(), func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using redis rotation lock", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key, "ttl", cfg.Redis.TTLDuration())

	return lock.NewRedis(client, cfg.Redis.Key, cfg.Redis.TTLDuration()), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

// initializeNotifier always logs events. Kafka is added when brokers are
// configured, and Kubernetes pod events when running in a pod.
func initializeNotifier(cfg config.NotifyConfig, logger *slog.Logger) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.NewLog(logger)}
	var closers []func()

	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka notifier: %w", err)
		}
		logger.Info("Publishing rotation events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		notifiers = append(notifiers, k)
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				logger.Warn("failed to close kafka writer", "error", err)
			}
		})
	}

	if os.Getenv("POD_NAME") != "" {
		if n, stop, err := initializePodEvents(logger); err != nil {
			logger.Warn("Kubernetes events disabled", "error", err)
		} else {
			notifiers = append(notifiers, n)
			closers = append(closers, stop)
		}
	}

	return notifiers, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func initializePodEvents(logger *slog.Logger) (notify.Notifier, func(), error) {
	restCfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	n, stop := controller.NewPodEventNotifier(client, logger)
	return n, stop, nil
}

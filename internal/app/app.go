// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/internal/config"
	"github.com/carriergate/slicepurchase/internal/server"
	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/carrier"
	"github.com/carriergate/slicepurchase/pkg/diag"
	"github.com/carriergate/slicepurchase/pkg/entitlement"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/orchestrator"
	"github.com/carriergate/slicepurchase/pkg/quota"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

// App holds all application dependencies and manages the application lifecycle.
//
// Components are initialized in dependency order: Redis, carrier policy,
// entitlement client, flow server, orchestrator registry, then the servers
// and telemetry. Shutdown runs the same chain in reverse.
type App struct {
	cfg               *config.Config
	flowServer        *server.FlowServer
	metricsServer     *server.MetricsServer
	redisClient       *redis.Client
	registry          *orchestrator.Registry
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes a new application instance.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	if err := app.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	carrierConfig, err := carrier.LoadConfig(cfg.CarrierConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load carrier config from %s: %w", cfg.CarrierConfigPath, err)
	}
	logrus.Infof("loaded carrier configuration for %s from %s", carrierConfig.CarrierName, cfg.CarrierConfigPath)

	entitlementChecker := entitlement.NewHTTPClient(entitlement.HTTPClientConfig{
		Endpoint:       cfg.EntitlementEndpoint,
		RequestTimeout: time.Duration(cfg.EntitlementTimeoutSec) * time.Second,
		MaxRetries:     uint64(cfg.EntitlementMaxRetries),
	})

	// The flow server and the registry reference each other: inbound channel
	// responses are routed to the owning slot's orchestrator, and every
	// orchestrator opens flows through the shared server. The closures below
	// read app.registry, which is assigned before any traffic can arrive.
	app.flowServer = server.NewFlowServer(server.FlowServerConfig{
		Port: cfg.FlowPort,
		OnResponse: func(slot int, cap capability.Capability, resp flowchannel.Response) {
			o, ok := app.registry.Lookup(slot)
			if !ok {
				logrus.Warnf("dropping channel response for slot %d: no orchestrator", slot)
				return
			}
			o.OnChannelResponse(cap, resp)
		},
		OnSliceConfig: func(snapshot *slice.Snapshot) {
			app.registry.BroadcastSliceConfig(snapshot)
		},
		Health: quota.NewHealthChecker(app.redisClient).Check,
		Diag:   diag.NewLogReporter(),
	})

	app.registry = orchestrator.NewRegistry(func(slot int) (*orchestrator.Orchestrator, error) {
		return orchestrator.New(slot, cfg.SubscriptionID, orchestrator.Deps{
			Carrier:     carrierConfig,
			Entitlement: entitlementChecker,
			Channel:     app.flowServer,
			Quota:       quota.NewRedisStore(app.redisClient, cfg.DeviceID, slot),
			Device:      newPlatformDeviceMonitor(cfg),
			Diag:        diag.NewLogReporter(),
		})
	})

	// Eagerly construct one orchestrator per configured slot so timers and
	// throttle state exist before the first purchase request.
	for slot := 0; slot < cfg.SlotCount; slot++ {
		if _, err := app.registry.Get(slot); err != nil {
			return nil, fmt.Errorf("failed to init orchestrator for slot %d: %w", slot, err)
		}
	}
	logrus.Infof("initialized %d slot orchestrator(s)", cfg.SlotCount)

	if err := app.flowServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup purchase flow server: %w", err)
	}

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")
	return app, nil
}

// initRedis initializes the Redis client used for the notification quota.
func (a *App) initRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(a.cfg.RedisHost, a.cfg.RedisPort),
		Password:     a.cfg.RedisPassword,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(a.cfg.RedisRetryDelayMs) * time.Millisecond
	maxRetries := backoff.WithMaxRetries(b, uint64(a.cfg.RedisMaxRetries))

	err := backoff.Retry(
		func() error {
			_, err := client.Ping(ctx).Result()
			if err != nil {
				logrus.Warnf("Redis connection failed: %v, retrying...", err)
				return err
			}
			return nil
		},
		maxRetries,
	)
	if err != nil {
		return err
	}

	a.redisClient = client
	logrus.Info("Redis client initialized")
	return nil
}

// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run(ctx context.Context) error {
	if err := a.flowServer.Start(ctx); err != nil {
		return err
	}
	if err := a.metricsServer.Start(ctx); err != nil {
		return err
	}

	logrus.Info("application started successfully")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logrus.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all application components in reverse
// dependency order: servers first so no new work arrives, then the
// orchestrators so in-flight purchases fail deterministically, then the
// external connections. Errors are logged but never abort the sequence.
func (a *App) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down application...")

	if err := a.flowServer.Shutdown(ctx); err != nil {
		logrus.Errorf("purchase flow server shutdown error: %v", err)
	}
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		logrus.Errorf("metrics server shutdown error: %v", err)
	}

	if a.registry != nil {
		a.registry.Close()
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logrus.Errorf("Redis close error: %v", err)
		}
	}

	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			logrus.Errorf("telemetry shutdown error: %v", err)
		}
	}

	logrus.Info("application shutdown complete")
	return nil
}

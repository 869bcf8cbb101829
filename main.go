// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/internal/app"
	"github.com/carriergate/slicepurchase/internal/config"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("starting slice purchase orchestrator...")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}

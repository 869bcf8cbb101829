// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package common

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewTracerProvider creates a tracer provider exporting spans to a Zipkin
// collector. The collector endpoint comes from ZIPKIN_ENDPOINT.
func NewTracerProvider(serviceName, environment string, id int64) (*sdktrace.TracerProvider, error) {
	endpoint := GetEnv("ZIPKIN_ENDPOINT", "http://localhost:9411/api/v2/spans")

	exporter, err := zipkin.New(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create zipkin exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
			semconv.ServiceInstanceID(fmt.Sprintf("%d", id)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracer resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

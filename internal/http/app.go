// Package http holds the composition types shared by the router and the feature modules.
package http

import (
	"context"

	"jobflow_backend/internal/events"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Ping calls the underlying function.
func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health lists dependencies checked by the readiness endpoint, keyed by name.
	Health map[string]HealthChecker
	// Metrics is exposed on /metrics; nil disables the endpoint.
	Metrics *metrics.Registry
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}

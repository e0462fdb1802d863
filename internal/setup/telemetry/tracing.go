package telemetry

import (
	"context"

	"github.com/robalyx/autoban/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// ServiceVersion is reported with every exported span.
const ServiceVersion = config.RepositoryVersion

// ConfigureTracing sets up OpenTelemetry export through Uptrace.
// Returns false without touching the global providers when no DSN is set.
func ConfigureTracing(cfg *config.Uptrace, serviceType ServiceType, logger *zap.Logger) bool {
	if cfg.DSN == "" {
		return false
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "autoban"
	}

	opts := []uptrace.Option{
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName(serviceName + "-" + serviceType.String()),
		uptrace.WithServiceVersion(ServiceVersion),
	}
	if cfg.Environment != "" {
		opts = append(opts, uptrace.WithDeploymentEnvironment(cfg.Environment))
	}

	uptrace.ConfigureOpentelemetry(opts...)

	logger.Info("OpenTelemetry export enabled", zap.String("service", serviceName))

	return true
}

// ShutdownTracing flushes and stops the exporters configured by ConfigureTracing.
func ShutdownTracing(ctx context.Context) error {
	return uptrace.Shutdown(ctx)
}

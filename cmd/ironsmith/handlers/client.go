// Package handlers implements the command logic behind the CLI surface.
package handlers

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
)

// Factory function variables - can be replaced in tests.
var (
	// newClients authenticates against the cloud and builds the service
	// clients.
	newClients = func(ctx context.Context, region string) (*openstack.Clients, error) {
		return openstack.NewClients(ctx, openstack.ClientOpts{Region: region})
	}

	// newLogger builds the diagnostic logger.
	newLogger = buildLogger
)

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("IRONSMITH_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

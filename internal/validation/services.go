package validation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zfogg/vidshare/internal/logger"
	"go.uber.org/zap"
)

// CheckFunc probes one backend.
type CheckFunc func(ctx context.Context) error

// ServiceValidator verifies that the backends listed as required are
// reachable before the server starts taking traffic.
type ServiceValidator struct {
	required []string
	checks   map[string]CheckFunc
	timeout  time.Duration
}

// NewServiceValidator creates a validator for the named required services.
func NewServiceValidator(required []string) *ServiceValidator {
	return &ServiceValidator{
		required: required,
		checks:   make(map[string]CheckFunc),
		timeout:  10 * time.Second,
	}
}

// Add registers the check for a service name.
func (sv *ServiceValidator) Add(name string, check CheckFunc) {
	sv.checks[name] = check
}

// Known lists the services that have a registered check.
func (sv *ServiceValidator) Known() []string {
	names := make([]string, 0, len(sv.checks))
	for name := range sv.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateServices runs the check of every required service and fails on the
// first one that is unknown or unreachable.
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.required) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.required))

	for _, name := range sv.required {
		check, ok := sv.checks[name]
		if !ok {
			return fmt.Errorf("required service %q is not configured (known: %v)", name, sv.Known())
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("required service %q failed validation: %w", name, err)
		}

		logger.Log.Info("Service validated", zap.String("service", name))
	}
	return nil
}

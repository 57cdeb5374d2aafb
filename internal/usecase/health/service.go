package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Component names used as Report.Checks keys.
const (
	ComponentEngine    = "engine"
	ComponentCache     = "cache"
	ComponentExpansion = "expansion"
)

// Service coordinates health checks.
type Service struct {
	engine    Pinger
	cache     Pinger
	expansion ExpansionChecker
}

// New creates a Service. cache and expansion can be nil.
func New(engine Pinger, cache Pinger, expansion ExpansionChecker) *Service {
	return &Service{engine: engine, cache: cache, expansion: expansion}
}

// Check runs health checks against all components. A failing engine makes
// the service unhealthy; failing optional components only degrade it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentEngine] = result(s.engine.Ping(ctx))
	if s.cache != nil {
		checks[ComponentCache] = result(s.cache.Ping(ctx))
	}
	if s.expansion != nil {
		checks[ComponentExpansion] = result(s.expansion.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentEngine] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}

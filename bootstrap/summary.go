package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/logger"
)

// ComponentSummary is one line of the startup summary.
type ComponentSummary struct {
	Name    string
	Type    string
	Details string
	Status  component.HealthStatus
	Message string
}

// Summary collects what the application started with.
func (a *App[C]) Summary(ctx context.Context) []ComponentSummary {
	health := make(map[string]component.Health)
	for _, h := range a.Components.HealthAll(ctx) {
		health[h.Name] = h
	}

	all := a.Components.All()
	out := make([]ComponentSummary, 0, len(all))
	for _, c := range all {
		s := ComponentSummary{Name: c.Name()}
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			s.Type, s.Details = desc.Type, desc.Details
		}
		if h, ok := health[c.Name()]; ok {
			s.Status, s.Message = h.Status, h.Message
		}
		out = append(out, s)
	}
	return out
}

func (a *App[C]) logSummary(ctx context.Context, took time.Duration) {
	summary := a.Summary(ctx)
	healthy := 0
	for _, s := range summary {
		fields := logger.Fields(
			logger.FieldComponent, s.Name,
			logger.FieldStatus, string(s.Status),
		)
		if s.Type != "" {
			fields["type"] = s.Type
		}
		if s.Details != "" {
			fields["details"] = s.Details
		}
		if s.Message != "" {
			fields["message"] = s.Message
		}
		a.Logger.Info("component", fields)
		if s.Status == component.StatusHealthy {
			healthy++
		}
	}
	a.Logger.Info("application started", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		"startup_ms", took.Milliseconds(),
		"healthy", healthy,
		"components", len(summary),
	))
}

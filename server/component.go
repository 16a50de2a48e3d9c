package server

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/kbukum/streamkit/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps a Server for the component registry.
type Component struct {
	server  *Server
	started atomic.Bool
}

// NewComponent returns a component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

func (sc *Component) Name() string { return componentName }

func (sc *Component) Start(ctx context.Context) error {
	if err := sc.server.Start(ctx); err != nil {
		return err
	}
	sc.started.Store(true)
	return nil
}

func (sc *Component) Stop(ctx context.Context) error {
	sc.started.Store(false)
	return sc.server.Stop(ctx)
}

func (sc *Component) Health(ctx context.Context) component.Health {
	if !sc.started.Load() {
		return component.Health{
			Name:    componentName,
			Status:  component.StatusUnhealthy,
			Message: "status server not listening",
		}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe lists the bound address and the registered routes.
func (sc *Component) Describe() component.Description {
	return component.Description{
		Name:    "Status Server",
		Type:    "server",
		Details: sc.server.Addr() + " " + routeSummary(sc.server),
	}
}

func routeSummary(s *Server) string {
	routes := s.engine.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	items := make([]string, 0, len(routes))
	for _, r := range routes {
		items = append(items, r.Method+" "+r.Path)
	}
	return "[" + strings.Join(items, ", ") + "]"
}

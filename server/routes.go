package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/pipeline"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/version"
)

var startTime = time.Now()

// HealthChecker returns the health of the registered components.
type HealthChecker func(ctx context.Context) []component.Health

// PipelineStatus is the body of GET /pipeline.
type PipelineStatus struct {
	Name          string                `json:"name"`
	State         string                `json:"state"`
	ActiveStreams int                   `json:"active_streams"`
	Stages        []pipeline.StageInfo `json:"stages"`
}

// LinkReport is one entry of GET /pipeline/links.
type LinkReport struct {
	pipeline.Link
	Status pipeline.LinkStatus `json:"status"`
}

// RegisterHealth serves GET /health. The answer is 503 as soon as one
// component is unhealthy.
func (s *Server) RegisterHealth(serviceName string, checker HealthChecker) {
	s.engine.GET("/health", healthHandler(serviceName, checker))
}

// RegisterInfo serves GET /info with build information and uptime.
func (s *Server) RegisterInfo(serviceName string) {
	s.engine.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"build":   version.Get(),
			"uptime":  time.Since(startTime).String(),
		})
	})
}

// RegisterPipeline serves the pipeline status routes.
func (s *Server) RegisterPipeline(p *pipeline.Pipeline) {
	g := s.engine.Group("/pipeline")
	g.GET("", pipelineHandler(p))
	g.GET("/links", linksHandler(p))
	g.GET("/profile", func(c *gin.Context) { RespondOK(c, p.Profile()) })
	g.POST("/stop", stopHandler(p))
}

// RegisterEvents serves GET /pipeline/events as a server-sent event stream.
// The optional stream query parameter is a glob on stream ids.
func (s *Server) RegisterEvents(hub *sse.Hub) {
	s.engine.GET("/pipeline/events", func(c *gin.Context) {
		sse.ServeSSE(hub, c.Writer, c.Request, uuid.NewString(), c.Query("stream"))
	})
}

func healthHandler(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := component.StatusHealthy
		var components []component.Health

		if checker != nil {
			components = checker(c.Request.Context())
			for _, ch := range components {
				if ch.Status == component.StatusUnhealthy {
					status = component.StatusUnhealthy
					break
				}
				if ch.Status == component.StatusDegraded {
					status = component.StatusDegraded
				}
			}
		}

		httpStatus := http.StatusOK
		if status == component.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}

func pipelineHandler(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		RespondOK(c, PipelineStatus{
			Name:          p.Name(),
			State:         p.State().String(),
			ActiveStreams: p.ActiveStreams(),
			Stages:        p.Stages(),
		})
	}
}

func linksHandler(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		links := p.Links()
		out := make([]LinkReport, 0, len(links))
		for _, l := range links {
			st, err := p.QueryLinkStatus(l.ID)
			if err != nil {
				RespondWithError(c, err)
				return
			}
			out = append(out, LinkReport{Link: l, Status: st})
		}
		RespondOK(c, out)
	}
}

// stopHandler only asks for the stop; the daemon watching StopRequested
// performs it.
func stopHandler(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.IsRunning() {
			RespondWithError(c, errors.PipelineIdle("request a stop"))
			return
		}
		reason := c.DefaultQuery("reason", "requested over http")
		if !p.PostEvent(eventbus.NewEvent(eventbus.Stop, "server", reason)) {
			RespondWithError(c, errors.New(errors.ErrCodeInternal, "event bus refused the stop request", http.StatusServiceUnavailable))
			return
		}
		RespondAccepted(c, gin.H{"stop_requested": true})
	}
}

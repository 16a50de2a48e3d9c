// Command streamkitd runs one pipeline described by a graph file, with a
// status server and optional OTLP telemetry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/streamkit/bootstrap"
	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/pipeline"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/version"

	_ "github.com/kbukum/streamkit/stages"
)

const serviceName = "streamkitd"

func main() {
	configFile := flag.String("config", "", "path to the config file (default: searched)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}
	if err := run(context.Background(), *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	var cfg Config
	opts := []config.LoaderOption{config.WithEnvPrefix("STREAMKIT")}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	telemetry, err := observability.NewProvider(cfg.Observability)
	if err != nil {
		return err
	}
	hub := sse.NewHub()
	p, err := buildPipeline(&cfg, telemetry, hub)
	if err != nil {
		return err
	}

	if err := app.RegisterComponent(telemetry); err != nil {
		return err
	}
	if err := app.RegisterComponent(sse.NewComponent(hub, "/pipeline/events")); err != nil {
		return err
	}
	if err := app.RegisterComponent(pipeline.NewComponent(p)); err != nil {
		return err
	}
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, app.Logger)
		srv.ApplyMiddleware()
		srv.RegisterHealth(cfg.Name, app.Components.HealthAll)
		srv.RegisterInfo(cfg.Name)
		srv.RegisterPipeline(p)
		srv.RegisterEvents(hub)
		if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
			return err
		}
	}

	app.StopOn("pipeline", p.StopRequested)
	return app.Run(ctx)
}

// buildPipeline loads the graph file and wires the observers. A nil hub
// disables the event feed.
func buildPipeline(cfg *Config, telemetry *observability.Provider, hub *sse.Hub) (*pipeline.Pipeline, error) {
	def, err := pipeline.LoadDefinition(cfg.Pipeline.GraphFile)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Build(def, nil,
		pipeline.WithConfig(cfg.Pipeline.Config),
		pipeline.WithMetrics(telemetry.Metrics()),
		pipeline.WithTracing(cfg.Pipeline.Tracing && telemetry.TracingEnabled()),
	)
	if err != nil {
		return nil, err
	}
	if hub != nil {
		p.EventBus().AddWatcher(sse.EventWatcher(hub))
	}
	p.SetStreamMsgObserver(newStreamReporter(p, hub, cfg.Pipeline.ExitOnEOS))
	return p, nil
}

// streamReporter logs stream messages, mirrors them to the event feed and,
// when asked to, requests a stop once the last live stream has ended.
type streamReporter struct {
	p         *pipeline.Pipeline
	hub       *sse.Hub
	exitOnEOS bool
	log       *logger.Logger
}

// streamEvent is the body of a "stream" feed event.
type streamEvent struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	Module    string `json:"module,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func newStreamReporter(p *pipeline.Pipeline, hub *sse.Hub, exitOnEOS bool) *streamReporter {
	return &streamReporter{p: p, hub: hub, exitOnEOS: exitOnEOS, log: logger.WithComponent("streams")}
}

func (r *streamReporter) Update(msg pipeline.StreamMsg) {
	if r.hub != nil {
		sse.PublishJSON(r.hub, sse.EventStream, msg.StreamID, streamEvent{
			Type:      msg.Type.String(),
			StreamID:  msg.StreamID,
			Module:    msg.Module,
			Timestamp: msg.Timestamp,
		})
	}
	fields := logger.Fields(
		logger.FieldStreamID, msg.StreamID,
		logger.FieldStage, msg.Module,
		"type", msg.Type.String(),
	)
	switch msg.Type {
	case pipeline.MsgEOS:
		r.log.Info("stream ended", fields)
		if r.exitOnEOS && r.p.ActiveStreams() == 0 {
			r.p.PostEvent(eventStop("all streams ended"))
		}
	case pipeline.MsgFrameError:
		r.log.Debug("frame dropped", fields)
	default:
		r.log.Warn("stream problem", fields)
	}
}

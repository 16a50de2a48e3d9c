// Package observability provides OpenTelemetry tracing and metrics for the
// pipeline.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.StageSpanName("decode"))
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("streamkit"))
//	metrics.RecordFrame(ctx, "decode", observability.StatusForwarded, elapsed)
//
// Provider wraps both as a component.Component.
package observability

// Package telemetry provides OpenTelemetry tracing and metrics export for
// agentgraph.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	g := graph.New(..., graph.WithTracer(tel.Tracer("agentgraph/graph")))
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc        # or http/protobuf
//	  sample_rate: 1.0
//	  metrics: true
//
// # Error Handling
//
// Exporter setup failures do not stop the process. The instance is marked
// degraded and hands out the global (no-op) providers instead.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "graph.run")
//	span.End()
//	tt.AssertSpanExists(t, "graph.run")
package telemetry

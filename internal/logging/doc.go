// Package logging provides structured logging for agentgraph.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, thread, project, node)
//   - Secret redaction on the encoder
//
// # Usage
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithThreadID(ctx, "demo_session")
//	ctx = logging.WithNode(ctx, "supervisor")
//	logger.Info(ctx, "routing decided", zap.String("next_agent", "architect"))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "routing decided",
//	  "thread.id": "demo_session",
//	  "node": "supervisor",
//	  "next_agent": "architect"
//	}
//
// # Testing
//
// NewTestLogger records every entry in memory:
//
//	tl := logging.NewTestLogger()
//	svc := NewService(tl.Logger)
//	svc.Do(ctx)
//	tl.AssertLogged(t, zapcore.InfoLevel, "done")
package logging

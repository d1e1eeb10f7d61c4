package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. Backend calls log full prompt and reply
// bodies at this level.
const TraceLevel = zapcore.Level(-2)

// levelNames are the accepted LOGGING_LEVEL values. "warning" and
// "critical" keep older LOG_LEVEL settings working.
var levelNames = map[string]zapcore.Level{
	"trace":    TraceLevel,
	"debug":    zapcore.DebugLevel,
	"info":     zapcore.InfoLevel,
	"warn":     zapcore.WarnLevel,
	"warning":  zapcore.WarnLevel,
	"error":    zapcore.ErrorLevel,
	"critical": zapcore.ErrorLevel,
}

// LevelFromString parses a level name, ignoring case and surrounding space.
func LevelFromString(level string) (zapcore.Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want trace, debug, info, warn or error)", level)
}

// Package tools provides the fixed capability set offered to worker agents:
// file read/write/search and git status/commit.
//
// Executors never return Go errors. Failures come back as a Result with an
// "error" key and, where useful, a "suggestion" the model can act on.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Tool names.
const (
	ReadFile   = "read_file"
	WriteFile  = "write_file"
	SearchCode = "search_code"
	GitStatus  = "git_status"
	GitCommit  = "git_commit"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 10 * time.Second

// ErrDuplicateTool is returned when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Descriptor is what a backend sees of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is a tool's success payload or error record.
type Result map[string]any

// Err returns the error message, or "" on success.
func (r Result) Err() string {
	if msg, ok := r["error"].(string); ok {
		return msg
	}
	return ""
}

// JSON encodes the result for a tool-result message.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

func failure(msg, suggestion string) Result {
	r := Result{"error": msg}
	if suggestion != "" {
		r["suggestion"] = suggestion
	}
	return r
}

// Executor runs a tool on raw JSON arguments.
type Executor func(ctx context.Context, args json.RawMessage) Result

// Tool pairs a descriptor with its executor.
type Tool struct {
	Descriptor
	Execute Executor
}

// Registry is an ordered, read-only set of tools.
type Registry struct {
	tools   []Tool
	byName  map[string]int
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry builds a registry from tools in the given order.
func NewRegistry(tools []Tool, opts ...Option) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]int, len(tools)),
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range tools {
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}
		r.byName[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Default returns the registry with all five built-in tools.
func Default(git GitOptions, opts ...Option) *Registry {
	r, err := NewRegistry([]Tool{
		readFileTool(),
		writeFileTool(),
		searchCodeTool(),
		gitStatusTool(),
		gitCommitTool(git),
	}, opts...)
	if err != nil {
		panic(err) // built-in names are unique
	}
	return r
}

// Names returns tool names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Name
	}
	return out
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Descriptors returns the descriptors of the named tools in registry
// order, or of every tool when no names are given. Unknown names are
// skipped.
func (r *Registry) Descriptors(names ...string) []Descriptor {
	if len(names) == 0 {
		out := make([]Descriptor, len(r.tools))
		for i, t := range r.tools {
			out[i] = t.Descriptor
		}
		return out
	}
	idx := make([]int, 0, len(names))
	for _, n := range names {
		if i, ok := r.byName[n]; ok {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	out := make([]Descriptor, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.tools[i].Descriptor)
	}
	return out
}

// Execute runs the named tool under the registry timeout.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) Result {
	t, ok := r.Get(name)
	if !ok {
		return failure(fmt.Sprintf("Unknown tool: %s", name), fmt.Sprintf("Available tools: %v", r.Names()))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res := t.Execute(ctx, args)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && res.Err() == "" {
		res = failure(fmt.Sprintf("%s timed out", name), "Operation took too long")
	}
	r.logger.Debug("tool executed",
		zap.String("tool", name),
		zap.Duration("duration", time.Since(start)),
		zap.String("error", res.Err()))
	return res
}

func decodeArgs(args json.RawMessage, v any) Result {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return failure(fmt.Sprintf("Invalid arguments: %v", err), "Arguments must be a JSON object matching the tool schema")
	}
	return nil
}

func schema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

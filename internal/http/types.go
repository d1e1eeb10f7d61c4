package http

import (
	"time"

	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Projects int    `json:"projects"`
}

// ProjectSummary is one entry of GET /api/v1/projects.
type ProjectSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ProjectsResponse is the response body for GET /api/v1/projects.
type ProjectsResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

// ProjectResponse is the response body for GET /api/v1/projects/:name.
type ProjectResponse struct {
	Project *project.Info `json:"project"`
}

// TaskRequest is the request body for POST /api/v1/tasks.
type TaskRequest struct {
	Task     string `json:"task"`
	Project  string `json:"project,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

// TaskResponse is the response body for POST /api/v1/tasks.
type TaskResponse struct {
	ThreadID string         `json:"thread_id"`
	Project  string         `json:"project"`
	Fallback bool           `json:"project_fallback,omitempty"`
	// RoutedTo is the worker the supervisor dispatched to; empty when the
	// run ended at the supervisor.
	RoutedTo string         `json:"routed_to,omitempty"`
	Route    []string       `json:"route,omitempty"`
	Reply    *state.Message `json:"reply,omitempty"`
	Messages int            `json:"messages"`
}

// ThreadResponse is the response body for GET /api/v1/threads/:id.
type ThreadResponse struct {
	ThreadID  string          `json:"thread_id"`
	Next      string          `json:"next,omitempty"`
	Done      bool            `json:"done"`
	Step      int             `json:"step"`
	UpdatedAt time.Time       `json:"updated_at"`
	State     *state.RunState `json:"state"`
}

// ToolsResponse is the response body for GET /api/v1/tools.
type ToolsResponse struct {
	Tools []tools.Descriptor `json:"tools"`
}

// ToolResponse is the response body for POST /api/v1/tools/:name.
type ToolResponse struct {
	Tool   string       `json:"tool"`
	Result tools.Result `json:"result"`
}

// ErrorResponse carries a failure and optional remediation hints.
type ErrorResponse struct {
	Message string   `json:"message"`
	Hints   []string `json:"hints,omitempty"`
}

// Package state defines the run state threaded through every graph node
// and the merge rules for node updates.
package state

import (
	"github.com/fyrsmithlabs/agentgraph/internal/project"
)

// RunState is the shared state of one run.
//
// Messages are append-only. NextAgent is the only field that drives
// control flow; it is written by the supervisor and cleared by workers.
type RunState struct {
	Messages       []Message                `json:"messages"`
	CurrentProject string                   `json:"current_project"`
	Projects       map[string]*project.Info `json:"projects"`
	ProjectContext Option[*project.Context] `json:"project_context"`
	NextAgent      Agent                    `json:"next_agent"`
	Task           string                   `json:"task"`
}

// Context returns the project context, or nil when no project is selected.
func (s *RunState) Context() *project.Context {
	pc, ok := s.ProjectContext.Get()
	if !ok {
		return nil
	}
	return pc
}

// Clone returns a copy whose message slice and projects map can be
// modified without affecting s. Project infos are shared.
func (s *RunState) Clone() *RunState {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.Projects != nil {
		c.Projects = make(map[string]*project.Info, len(s.Projects))
		for k, v := range s.Projects {
			c.Projects[k] = v
		}
	}
	return &c
}

// Update is a partial state patch returned by a node.
//
// Messages are appended; every non-nil pointer field replaces the
// corresponding state field.
type Update struct {
	Messages       []Message
	CurrentProject *string
	Projects       map[string]*project.Info
	ProjectContext *Option[*project.Context]
	NextAgent      *Agent
	Task           *string
}

// Route returns an update that only sets NextAgent.
func Route(a Agent) Update {
	return Update{NextAgent: &a}
}

// Reply returns an update appending msg and clearing NextAgent.
func Reply(msg Message) Update {
	unset := Unset
	return Update{Messages: []Message{msg}, NextAgent: &unset}
}

// Apply returns a new state with u merged over s. s is not modified.
func (s *RunState) Apply(u Update) *RunState {
	next := s.Clone()
	next.Messages = append(next.Messages, u.Messages...)
	if u.CurrentProject != nil {
		next.CurrentProject = *u.CurrentProject
	}
	if u.Projects != nil {
		next.Projects = u.Projects
	}
	if u.ProjectContext != nil {
		next.ProjectContext = *u.ProjectContext
	}
	if u.NextAgent != nil {
		next.NextAgent = *u.NextAgent
	}
	if u.Task != nil {
		next.Task = *u.Task
	}
	return next
}

// Input is the caller-supplied seed of a run.
type Input struct {
	Task           string
	CurrentProject string
	Projects       map[string]*project.Info
	ProjectContext *project.Context
	Messages       []Message
}

// Seed returns the update that starts a run from in. When merged over an
// existing thread state the messages accumulate and everything else is
// replaced, including a reset of NextAgent.
func (in Input) Seed() Update {
	pc := None[*project.Context]()
	if in.ProjectContext != nil {
		pc = Some(in.ProjectContext)
	}
	unset := Unset
	task, current := in.Task, in.CurrentProject
	projects := in.Projects
	if projects == nil {
		projects = map[string]*project.Info{}
	}
	return Update{
		Messages:       in.Messages,
		CurrentProject: &current,
		Projects:       projects,
		ProjectContext: &pc,
		NextAgent:      &unset,
		Task:           &task,
	}
}

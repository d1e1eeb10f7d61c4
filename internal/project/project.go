package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultCoverageTarget is used when a config omits coverage_target.
const DefaultCoverageTarget = 80

// Common errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectExists    = errors.New("project already exists")
	ErrMissingField     = errors.New("missing required field")
	ErrPathNotExist     = errors.New("project path does not exist")
	ErrDuplicateProject = errors.New("duplicate project name")
	ErrUnknownType      = errors.New("could not detect project type")
	ErrEmptyProjectName = errors.New("project name cannot be empty")
)

// RequiredFields lists the config keys every project must declare.
var RequiredFields = []string{"name", "type", "description", "path", "tech_stack", "tools"}

// NotFoundError reports a lookup for an unknown project.
type NotFoundError struct {
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	known := "none"
	if len(e.Known) > 0 {
		known = strings.Join(e.Known, ", ")
	}
	return fmt.Sprintf("project %q not found (available: %s)", e.Name, known)
}

// Is reports ErrProjectNotFound equivalence.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrProjectNotFound
}

// ConfigError is a fatal problem with a project config file.
type ConfigError struct {
	File   string
	Field  string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	b.WriteString(": ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TechStack holds the well-known tech stack keys plus any open-ended extras.
type TechStack struct {
	Language  string            `json:"language,omitempty" yaml:"language,omitempty"`
	Framework string            `json:"framework,omitempty" yaml:"framework,omitempty"`
	BuildTool string            `json:"build_tool,omitempty" yaml:"build_tool,omitempty"`
	Version   string            `json:"version,omitempty" yaml:"version,omitempty"`
	Extra     map[string]string `json:"extra,omitempty" yaml:",inline"`
}

// NewTechStack splits a raw mapping into known keys and extras.
func NewTechStack(raw map[string]string) TechStack {
	ts := TechStack{}
	for k, v := range raw {
		switch k {
		case "language":
			ts.Language = v
		case "framework":
			ts.Framework = v
		case "build_tool":
			ts.BuildTool = v
		case "version":
			ts.Version = v
		default:
			if ts.Extra == nil {
				ts.Extra = make(map[string]string)
			}
			ts.Extra[k] = v
		}
	}
	return ts
}

// Entry is one rendered tech stack key/value.
type Entry struct {
	Key   string
	Value string
}

// Entries returns the set keys in render order: language, framework,
// build_tool, version, then extras sorted by key.
func (ts TechStack) Entries() []Entry {
	var out []Entry
	for _, e := range []Entry{
		{"language", ts.Language},
		{"framework", ts.Framework},
		{"build_tool", ts.BuildTool},
		{"version", ts.Version},
	} {
		if e.Value != "" {
			out = append(out, e)
		}
	}
	keys := make([]string, 0, len(ts.Extra))
	for k := range ts.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Entry{k, ts.Extra[k]})
	}
	return out
}

// Info is the immutable descriptor of one project.
type Info struct {
	Name            string            `json:"name" yaml:"name"`
	Type            string            `json:"type" yaml:"type"`
	Description     string            `json:"description" yaml:"description"`
	Path            string            `json:"path" yaml:"path"`
	TechStack       TechStack         `json:"tech_stack" yaml:"tech_stack"`
	Tools           map[string]string `json:"tools" yaml:"tools"`
	Conventions     []string          `json:"conventions,omitempty" yaml:"conventions,omitempty"`
	CodingStandards map[string]string `json:"coding_standards,omitempty" yaml:"coding_standards,omitempty"`
	TestFramework   string            `json:"test_framework,omitempty" yaml:"test_framework,omitempty"`
	CoverageTarget  int               `json:"coverage_target" yaml:"coverage_target"`
}

// SortedStandards returns coding standards sorted by key.
func (i *Info) SortedStandards() []Entry {
	keys := make([]string, 0, len(i.CodingStandards))
	for k := range i.CodingStandards {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{k, i.CodingStandards[k]})
	}
	return out
}

// Tool returns the command configured under name, or fallback.
func (i *Info) Tool(name, fallback string) string {
	if v, ok := i.Tools[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Context pairs a project with its few-shot examples.
type Context struct {
	Info     *Info    `json:"info"`
	Examples Examples `json:"examples"`
}

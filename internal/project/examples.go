package project

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExamplesFile is the optional few-shot file next to config.yaml.
const ExamplesFile = "examples.yaml"

// Example is one few-shot input/output pair.
type Example struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// TaskExamples groups the examples of one task type.
type TaskExamples struct {
	TaskType string    `json:"task_type"`
	Examples []Example `json:"examples"`
}

// RoleExamples groups the task types of one agent role.
type RoleExamples struct {
	Role  string         `json:"role"`
	Tasks []TaskExamples `json:"tasks"`
}

// Examples is the role -> task type -> examples bank, kept in file order.
type Examples []RoleExamples

// ForRole returns the task groups for role, nil if none.
func (e Examples) ForRole(role string) []TaskExamples {
	for _, r := range e {
		if r.Role == role {
			return r.Tasks
		}
	}
	return nil
}

// UnmarshalYAML decodes the nested mapping without losing key order.
func (e *Examples) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*e = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("examples: line %d: expected mapping of roles", node.Line)
	}
	out := make(Examples, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		role := RoleExamples{Role: node.Content[i].Value}
		tasks := node.Content[i+1]
		if tasks.Kind == yaml.ScalarNode && tasks.Tag == "!!null" {
			out = append(out, role)
			continue
		}
		if tasks.Kind != yaml.MappingNode {
			return fmt.Errorf("examples: %s: line %d: expected mapping of task types", role.Role, tasks.Line)
		}
		for j := 0; j+1 < len(tasks.Content); j += 2 {
			group := TaskExamples{TaskType: tasks.Content[j].Value}
			if err := tasks.Content[j+1].Decode(&group.Examples); err != nil {
				return fmt.Errorf("examples: %s.%s: %w", role.Role, group.TaskType, err)
			}
			role.Tasks = append(role.Tasks, group)
		}
		out = append(out, role)
	}
	*e = out
	return nil
}

// LoadExamples reads an examples file. A missing file yields an empty bank.
func LoadExamples(path string) (Examples, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Examples{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}
	var ex Examples
	if err := yaml.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if ex == nil {
		ex = Examples{}
	}
	return ex, nil
}

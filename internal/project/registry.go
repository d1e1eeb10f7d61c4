package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the per-project config file name.
const ConfigFile = "config.yaml"

const maxConfigFileSize = 1024 * 1024 // 1MB

// Registry is the set of known projects.
//
// Infos and examples are read-only once loaded; Register is the only
// mutation and is guarded so the registry can be shared across runs.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu       sync.RWMutex
	projects map[string]*Info
	examples map[string]Examples
	order    []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry returns an empty registry rooted at dir.
func NewRegistry(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:      dir,
		logger:   zap.NewNop(),
		projects: make(map[string]*Info),
		examples: make(map[string]Examples),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover loads every project under dir.
//
// A missing root yields an empty registry. Any broken project config is
// returned as an error and no registry is produced.
func Discover(dir string, opts ...Option) (*Registry, error) {
	r := NewRegistry(dir, opts...)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("projects directory not found", zap.String("dir", dir))
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading projects directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDir := filepath.Join(dir, entry.Name())
		cfgPath := filepath.Join(projectDir, ConfigFile)
		if _, err := os.Stat(cfgPath); err != nil {
			continue
		}

		info, err := LoadInfo(cfgPath)
		if err != nil {
			return nil, err
		}
		if _, dup := r.projects[info.Name]; dup {
			return nil, &ConfigError{File: cfgPath, Field: "name", Detail: info.Name, Err: ErrDuplicateProject}
		}
		examples, err := LoadExamples(filepath.Join(projectDir, ExamplesFile))
		if err != nil {
			return nil, &ConfigError{File: filepath.Join(projectDir, ExamplesFile), Err: err}
		}

		r.add(info, examples)
		r.logger.Debug("project loaded",
			zap.String("project", info.Name),
			zap.String("type", info.Type),
			zap.String("path", info.Path))
	}

	r.logger.Info("projects discovered", zap.Int("count", len(r.order)), zap.String("dir", dir))
	return r, nil
}

// rawInfo is the on-disk shape; free-form maps are normalized after decode.
type rawInfo struct {
	Name            string         `koanf:"name"`
	Type            string         `koanf:"type"`
	Description     string         `koanf:"description"`
	Path            string         `koanf:"path"`
	TechStack       map[string]any `koanf:"tech_stack"`
	Tools           map[string]any `koanf:"tools"`
	Conventions     []string       `koanf:"conventions"`
	CodingStandards map[string]any `koanf:"coding_standards"`
	TestFramework   string         `koanf:"test_framework"`
	CoverageTarget  int            `koanf:"coverage_target"`
}

// LoadInfo reads and validates one config.yaml.
func LoadInfo(cfgPath string) (*Info, error) {
	fi, err := os.Stat(cfgPath)
	if err != nil {
		return nil, &ConfigError{File: cfgPath, Err: err}
	}
	if fi.Size() > maxConfigFileSize {
		return nil, &ConfigError{File: cfgPath, Err: fmt.Errorf("file too large: %d bytes (max %d)", fi.Size(), maxConfigFileSize)}
	}
	content, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, &ConfigError{File: cfgPath, Err: err}
	}

	// "::" delimiter keeps dotted keys inside free-form maps intact.
	k := koanf.New("::")
	if err := k.Load(rawbytes.Provider(content), kyaml.Parser()); err != nil {
		return nil, &ConfigError{File: cfgPath, Err: err}
	}
	for _, field := range RequiredFields {
		if !k.Exists(field) {
			return nil, &ConfigError{File: cfgPath, Field: field, Err: ErrMissingField}
		}
	}

	var raw rawInfo
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, &ConfigError{File: cfgPath, Err: err}
	}
	if raw.Name == "" {
		return nil, &ConfigError{File: cfgPath, Field: "name", Err: ErrEmptyProjectName}
	}

	path, err := resolvePath(raw.Path)
	if err != nil {
		return nil, &ConfigError{
			File:   cfgPath,
			Field:  "path",
			Detail: fmt.Sprintf("%s (ensure the project is cloned or update the path in %s)", raw.Path, cfgPath),
			Err:    ErrPathNotExist,
		}
	}

	var lit literalMaps
	if err := yaml.Unmarshal(content, &lit); err != nil {
		return nil, &ConfigError{File: cfgPath, Err: err}
	}

	info := &Info{
		Name:            raw.Name,
		Type:            raw.Type,
		Description:     raw.Description,
		Path:            path,
		TechStack:       NewTechStack(stringMap(&lit.TechStack, raw.TechStack)),
		Tools:           stringMap(&lit.Tools, raw.Tools),
		Conventions:     raw.Conventions,
		CodingStandards: stringMap(&lit.CodingStandards, raw.CodingStandards),
		TestFramework:   raw.TestFramework,
		CoverageTarget:  raw.CoverageTarget,
	}
	if !k.Exists("coverage_target") {
		info.CoverageTarget = DefaultCoverageTarget
	}
	return info, nil
}

// resolvePath expands ~, makes p absolute, and requires it to exist.
func resolvePath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// literalMaps holds the free-form maps as parsed YAML nodes so scalar
// values keep their source text: version: 1.20 stays "1.20".
type literalMaps struct {
	TechStack       yaml.Node `yaml:"tech_stack"`
	Tools           yaml.Node `yaml:"tools"`
	CodingStandards yaml.Node `yaml:"coding_standards"`
}

// stringMap flattens one free-form map. Scalars use their literal text,
// nulls become "", and nested values fall back to their decoded form.
func stringMap(node *yaml.Node, decoded map[string]any) map[string]string {
	out := make(map[string]string, len(decoded))
	if node.Kind != yaml.MappingNode {
		for k, v := range decoded {
			out[k] = fmt.Sprint(v)
		}
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		switch {
		case val.Kind == yaml.ScalarNode && val.Tag == "!!null":
			out[key] = ""
		case val.Kind == yaml.ScalarNode:
			out[key] = val.Value
		case decoded[key] != nil:
			out[key] = fmt.Sprint(decoded[key])
		default:
			out[key] = ""
		}
	}
	return out
}

func (r *Registry) add(info *Info, examples Examples) {
	r.projects[info.Name] = info
	r.examples[info.Name] = examples
	r.order = append(r.order, info.Name)
}

// Dir returns the projects root.
func (r *Registry) Dir() string {
	return r.dir
}

// Get returns the project registered under name.
func (r *Registry) Get(name string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.projects[name]
	if !ok {
		return nil, r.notFound(name)
	}
	return info, nil
}

// LoadContext returns the project and its few-shot examples.
func (r *Registry) LoadContext(name string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.projects[name]
	if !ok {
		return nil, r.notFound(name)
	}
	examples := r.examples[name]
	if examples == nil {
		examples = Examples{}
	}
	return &Context{Info: info, Examples: examples}, nil
}

// Names returns project names in discovery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns projects in discovery order.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.projects[name])
	}
	return out
}

// Snapshot returns a name -> info map for run state. Infos are shared, the map is not.
func (r *Registry) Snapshot() map[string]*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Info, len(r.projects))
	for k, v := range r.projects {
		out[k] = v
	}
	return out
}

// Len returns the number of projects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) notFound(name string) error {
	known := append([]string(nil), r.order...)
	return &NotFoundError{Name: name, Known: known}
}

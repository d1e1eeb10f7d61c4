package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Register detects the type of the project at path and adds a basic
// entry for it under name, replacing any existing entry.
func (r *Registry) Register(name, path string) (*Info, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	abs, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotExist, path)
	}
	typ := DetectType(abs)
	if typ == "" {
		return nil, fmt.Errorf("%w for %s", ErrUnknownType, abs)
	}

	info := &Info{
		Name:            name,
		Type:            typ,
		Description:     capitalize(typ) + " project",
		Path:            abs,
		TechStack:       TechStack{Language: typ},
		Tools:           map[string]string{},
		Conventions:     []string{},
		CodingStandards: map[string]string{},
		CoverageTarget:  DefaultCoverageTarget,
	}
	enrichFromManifest(info)

	r.mu.Lock()
	if _, exists := r.projects[name]; !exists {
		r.order = append(r.order, name)
	}
	r.projects[name] = info
	r.examples[name] = Examples{}
	r.mu.Unlock()

	r.logger.Info("project registered",
		zap.String("project", name),
		zap.String("type", typ),
		zap.String("path", abs))
	return info, nil
}

// Save writes info as <dir>/<name>/config.yaml and returns the file path.
func (r *Registry) Save(info *Info) (string, error) {
	projectDir := filepath.Join(r.dir, info.Name)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return "", fmt.Errorf("encoding project config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding project config: %w", err)
	}

	cfgPath := filepath.Join(projectDir, ConfigFile)
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing project config: %w", err)
	}
	return cfgPath, nil
}

type cargoManifest struct {
	Package struct {
		Description string `toml:"description"`
		Edition     string `toml:"edition"`
		Version     string `toml:"version"`
	} `toml:"package"`
}

type pyprojectManifest struct {
	Project struct {
		Description    string `toml:"description"`
		RequiresPython string `toml:"requires-python"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Description string `toml:"description"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// enrichFromManifest fills description and version details from TOML
// manifests. Unreadable manifests are ignored.
func enrichFromManifest(info *Info) {
	switch info.Type {
	case TypeRust:
		var m cargoManifest
		if _, err := toml.DecodeFile(filepath.Join(info.Path, "Cargo.toml"), &m); err != nil {
			return
		}
		if m.Package.Description != "" {
			info.Description = m.Package.Description
		}
		if m.Package.Edition != "" {
			info.TechStack.Version = "edition " + m.Package.Edition
		}
		info.TechStack.BuildTool = "cargo"
		info.Tools["build"] = "cargo build"
		info.Tools["test"] = "cargo test"
	case TypePython:
		var m pyprojectManifest
		if _, err := toml.DecodeFile(filepath.Join(info.Path, "pyproject.toml"), &m); err != nil {
			return
		}
		switch {
		case m.Project.Description != "":
			info.Description = m.Project.Description
		case m.Tool.Poetry.Description != "":
			info.Description = m.Tool.Poetry.Description
		}
		if m.Project.RequiresPython != "" {
			info.TechStack.Version = m.Project.RequiresPython
		}
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

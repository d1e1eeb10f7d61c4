package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"rust", []string{"Cargo.toml"}, TypeRust},
		{"elixir", []string{"mix.exs"}, TypeElixir},
		{"python pyproject", []string{"pyproject.toml"}, TypePython},
		{"python setup.py", []string{"setup.py"}, TypePython},
		{"javascript", []string{"package.json"}, TypeJavaScript},
		{"go", []string{"go.mod"}, TypeGo},
		{"java maven", []string{"pom.xml"}, TypeJava},
		{"java gradle", []string{"build.gradle"}, TypeJava},
		{"rust before python", []string{"pyproject.toml", "Cargo.toml"}, TypeRust},
		{"python before javascript", []string{"package.json", "setup.py"}, TypePython},
		{"javascript before go", []string{"go.mod", "package.json"}, TypeJavaScript},
		{"go before java", []string{"pom.xml", "go.mod"}, TypeGo},
		{"unknown", []string{"README.md"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
			}
			assert.Equal(t, tt.want, DetectType(dir))
		})
	}
}

func TestDetectType_MissingPath(t *testing.T) {
	assert.Equal(t, "", DetectType(filepath.Join(t.TempDir(), "missing")))
}

func TestRegistry_Register(t *testing.T) {
	t.Run("go project", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "go.mod"), []byte("module x\n"), 0o644))
		reg := NewRegistry(t.TempDir())

		info, err := reg.Register("svc", src)
		require.NoError(t, err)
		assert.Equal(t, TypeGo, info.Type)
		assert.Equal(t, "Go project", info.Description)
		assert.Equal(t, TypeGo, info.TechStack.Language)
		assert.Equal(t, DefaultCoverageTarget, info.CoverageTarget)

		got, err := reg.Get("svc")
		require.NoError(t, err)
		assert.Same(t, info, got)
	})

	t.Run("rust manifest enrichment", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "Cargo.toml"), []byte(`[package]
name = "engine"
version = "0.3.0"
edition = "2021"
description = "A tiny game engine"
`), 0o644))
		reg := NewRegistry(t.TempDir())

		info, err := reg.Register("engine", src)
		require.NoError(t, err)
		assert.Equal(t, "A tiny game engine", info.Description)
		assert.Equal(t, "edition 2021", info.TechStack.Version)
		assert.Equal(t, "cargo test", info.Tools["test"])
	})

	t.Run("unknown type", func(t *testing.T) {
		reg := NewRegistry(t.TempDir())
		_, err := reg.Register("blank", t.TempDir())
		assert.ErrorIs(t, err, ErrUnknownType)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("missing path", func(t *testing.T) {
		reg := NewRegistry(t.TempDir())
		_, err := reg.Register("ghost", filepath.Join(t.TempDir(), "ghost"))
		assert.ErrorIs(t, err, ErrPathNotExist)
	})
}

func TestRegistry_SaveThenDiscover(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "package.json"), []byte("{}"), 0o644))

	reg := NewRegistry(root)
	info, err := reg.Register("web", src)
	require.NoError(t, err)

	cfgPath, err := reg.Save(info)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "web", ConfigFile), cfgPath)

	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	assert.Equal(t, "Javascript project", decoded["description"])

	loaded, err := Discover(root)
	require.NoError(t, err)
	got, err := loaded.Get("web")
	require.NoError(t, err)
	assert.Equal(t, info.Path, got.Path)
	assert.Equal(t, info.TechStack, got.TechStack)
}

package project

import (
	"os"
	"path/filepath"
)

// Project type tags returned by DetectType.
const (
	TypeRust       = "rust"
	TypeElixir     = "elixir"
	TypePython     = "python"
	TypeJavaScript = "javascript"
	TypeGo         = "go"
	TypeJava       = "java"
)

type marker struct {
	files []string
	tag   string
}

// markers are checked in order; the first hit wins.
var markers = []marker{
	{[]string{"Cargo.toml"}, TypeRust},
	{[]string{"mix.exs"}, TypeElixir},
	{[]string{"pyproject.toml", "setup.py"}, TypePython},
	{[]string{"package.json"}, TypeJavaScript},
	{[]string{"go.mod"}, TypeGo},
	{[]string{"pom.xml", "build.gradle"}, TypeJava},
}

// DetectType returns the type tag of the project at path, or "" if unknown.
// A missing path is also unknown.
func DetectType(path string) string {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		return ""
	}
	for _, m := range markers {
		for _, f := range m.files {
			if _, err := os.Stat(filepath.Join(path, f)); err == nil {
				return m.tag
			}
		}
	}
	return ""
}

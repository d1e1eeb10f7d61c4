package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// skipDirs are never descended into by search_code.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	"target":       true,
	"_build":       true,
	".venv":        true,
}

// binaryExts are skipped by search_code.
var binaryExts = []string{".pyc", ".so", ".o"}

// ignoreRule is one compiled .gitignore line.
type ignoreRule struct {
	globs   []glob.Glob
	dirOnly bool
}

// ignoreSet holds the root .gitignore rules of a project.
type ignoreSet []ignoreRule

// loadIgnore reads <root>/.gitignore. Missing or unreadable files and
// patterns that fail to compile are ignored. Negations are not supported.
func loadIgnore(root string) ignoreSet {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var set ignoreSet
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rule, ok := parseIgnoreLine(scanner.Text()); ok {
			set = append(set, rule)
		}
	}
	return set
}

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ignoreRule{}, false
	}

	rule := ignoreRule{}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignoreRule{}, false
	}

	patterns := []string{line}
	if !anchored {
		// Unanchored names match at any depth.
		patterns = append(patterns, "**/"+line)
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return ignoreRule{}, false
		}
		rule.globs = append(rule.globs, g)
	}
	return rule, true
}

func (r ignoreRule) match(rel string) bool {
	for _, g := range r.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// ignored reports whether the slash-separated rel path is excluded.
func (s ignoreSet) ignored(rel string, isDir bool) bool {
	for _, r := range s {
		if r.dirOnly && !isDir {
			continue
		}
		if r.match(rel) {
			return true
		}
	}
	return false
}

// compileFilter compiles a search_code file pattern. Patterns without a
// slash match the base name; others match the relative path.
func compileFilter(pattern string) (func(rel string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	if !strings.Contains(pattern, "/") {
		return func(rel string) bool { return g.Match(pathBase(rel)) }, nil
	}
	return g.Match, nil
}

func pathBase(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

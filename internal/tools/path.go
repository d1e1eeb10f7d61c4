package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errOutsideProject = errors.New("path outside project directory")

// resolveRoot returns the canonical project root.
func resolveRoot(projectPath string) (string, error) {
	if projectPath == "" {
		return "", errors.New("project_path is required")
	}
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// resolveInProject joins filePath onto root, follows symlinks of whatever
// part already exists, and rejects anything that lands outside root.
func resolveInProject(root, filePath string) (abs, rel string, err error) {
	if filePath == "" {
		return "", "", errors.New("file_path is required")
	}
	p := filePath
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	resolved, err := evalExisting(p)
	if err != nil {
		return "", "", err
	}
	rel, err = filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return resolved, "", fmt.Errorf("%w: %s", errOutsideProject, filePath)
	}
	return resolved, rel, nil
}

// evalExisting resolves symlinks on the longest existing prefix of p.
func evalExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	base, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(p)), nil
}

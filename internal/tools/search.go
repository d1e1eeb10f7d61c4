package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxMatches caps search_code results.
const MaxMatches = 50

const maxSearchFileSize = 1 << 20

var errMatchLimit = errors.New("match limit reached")

// Match is one search_code hit.
type Match struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

type searchArgs struct {
	Query         string `json:"query"`
	ProjectPath   string `json:"project_path"`
	FileExtension string `json:"file_extension"`
	Glob          string `json:"glob"`
}

func searchCodeTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        SearchCode,
			Description: "Search project files for a case-insensitive text pattern.",
			Parameters: schema([]string{"query", "project_path"}, map[string]any{
				"query":          stringProp("Text to find"),
				"project_path":   stringProp("Absolute path to the project root"),
				"file_extension": stringProp("Optional file extension filter, e.g. \".go\""),
				"glob":           stringProp("Optional file glob, e.g. \"*_test.go\" or \"internal/**\""),
			}),
		},
		Execute: searchCode,
	}
}

func searchCode(ctx context.Context, raw json.RawMessage) Result {
	var args searchArgs
	if res := decodeArgs(raw, &args); res != nil {
		return res
	}
	if args.Query == "" {
		return failure("Search query is empty", "Provide the text to search for")
	}

	root, err := resolveRoot(args.ProjectPath)
	if err != nil {
		return failure(fmt.Sprintf("Project path not found: %s", args.ProjectPath), "Verify project path is correct")
	}
	filter, err := compileFilter(args.Glob)
	if err != nil {
		return failure(fmt.Sprintf("Invalid glob: %v", err), "Use patterns like *.go or internal/**")
	}
	ignore := loadIgnore(root)
	needle := strings.ToLower(args.Query)

	matches := make([]Match, 0)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		name := d.Name()
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") || ignore.ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || skipFile(name) || ignore.ignored(rel, false) {
			return nil
		}
		if args.FileExtension != "" && !strings.HasSuffix(name, args.FileExtension) {
			return nil
		}
		if !filter(rel) {
			return nil
		}

		for _, m := range scanFile(path, rel, needle) {
			matches = append(matches, m)
			if len(matches) >= MaxMatches {
				return errMatchLimit
			}
		}
		return nil
	})

	switch {
	case errors.Is(walkErr, errMatchLimit):
		return Result{
			"matches":   matches,
			"truncated": true,
			"message":   fmt.Sprintf("Showing first %d matches", MaxMatches),
		}
	case walkErr != nil:
		return failure(fmt.Sprintf("Search failed: %v", walkErr), "Verify project path and search query")
	}
	return Result{"matches": matches, "total": len(matches)}
}

func skipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ext := range binaryExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// scanFile returns matching lines. Large, unreadable and non-UTF-8 files
// yield nothing.
func scanFile(path, rel, needle string) []Match {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() > maxSearchFileSize {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return nil
	}

	var out []Match
	for i, line := range bytes.Split(data, []byte("\n")) {
		s := string(line)
		if strings.Contains(strings.ToLower(s), needle) {
			out = append(out, Match{File: rel, Line: i + 1, Content: strings.TrimSpace(s)})
		}
	}
	return out
}

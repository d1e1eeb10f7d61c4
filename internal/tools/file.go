package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type fileArgs struct {
	FilePath    string `json:"file_path"`
	ProjectPath string `json:"project_path"`
	Content     string `json:"content"`
}

func readFileTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        ReadFile,
			Description: "Read contents of a file within the project directory.",
			Parameters: schema([]string{"file_path", "project_path"}, map[string]any{
				"file_path":    stringProp("Relative or absolute path to the file"),
				"project_path": stringProp("Absolute path to the project root"),
			}),
		},
		Execute: readFile,
	}
}

func writeFileTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        WriteFile,
			Description: "Write content to a file within the project directory, creating parent directories.",
			Parameters: schema([]string{"file_path", "content", "project_path"}, map[string]any{
				"file_path":    stringProp("Relative or absolute path to the file"),
				"content":      stringProp("Content to write"),
				"project_path": stringProp("Absolute path to the project root"),
			}),
		},
		Execute: writeFile,
	}
}

func readFile(ctx context.Context, raw json.RawMessage) Result {
	var args fileArgs
	if res := decodeArgs(raw, &args); res != nil {
		return res
	}
	if err := ctx.Err(); err != nil {
		return failure(fmt.Sprintf("Failed to read file: %v", err), "")
	}

	abs, rel, res := locate(args)
	if res != nil {
		return res
	}

	fi, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return Result{
			"error":          fmt.Sprintf("File not found: %s", args.FilePath),
			"suggestion":     "Check if the file path is correct",
			"attempted_path": abs,
		}
	}
	if err != nil {
		return statFailure("read", args.FilePath, err)
	}
	if fi.IsDir() {
		return failure(fmt.Sprintf("Not a file: %s", args.FilePath), "Path points to a directory, not a file")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return statFailure("read", args.FilePath, err)
	}
	return Result{
		"content":       string(data),
		"path":          filepath.ToSlash(rel),
		"absolute_path": abs,
		"size":          len(data),
	}
}

func writeFile(ctx context.Context, raw json.RawMessage) Result {
	var args fileArgs
	if res := decodeArgs(raw, &args); res != nil {
		return res
	}
	if err := ctx.Err(); err != nil {
		return failure(fmt.Sprintf("Failed to write file: %v", err), "")
	}

	abs, rel, res := locate(args)
	if res != nil {
		return res
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return statFailure("write", args.FilePath, err)
	}
	if err := os.WriteFile(abs, []byte(args.Content), 0o644); err != nil {
		return statFailure("write", args.FilePath, err)
	}
	return Result{
		"success":       fmt.Sprintf("File written successfully: %s", args.FilePath),
		"path":          filepath.ToSlash(rel),
		"absolute_path": abs,
		"size":          len(args.Content),
	}
}

// locate resolves the project root and target file, enforcing the boundary.
func locate(args fileArgs) (abs, rel string, res Result) {
	root, err := resolveRoot(args.ProjectPath)
	if err != nil {
		return "", "", failure(fmt.Sprintf("Project path not found: %s", args.ProjectPath), "Verify project path is correct")
	}
	abs, rel, err = resolveInProject(root, args.FilePath)
	if errors.Is(err, errOutsideProject) {
		return "", "", Result{
			"error":          fmt.Sprintf("Path outside project directory: %s", args.FilePath),
			"suggestion":     fmt.Sprintf("File must be within %s", args.ProjectPath),
			"attempted_path": abs,
		}
	}
	if err != nil {
		return "", "", failure(fmt.Sprintf("Invalid file path: %v", err), "Provide a path relative to the project root")
	}
	return abs, rel, nil
}

func statFailure(op, path string, err error) Result {
	if errors.Is(err, os.ErrPermission) {
		suggestion := "Check file permissions"
		if op == "write" {
			suggestion = "Check directory permissions"
		}
		return failure(fmt.Sprintf("Permission denied: %s", path), suggestion)
	}
	suggestion := "Verify file exists and is readable"
	if op == "write" {
		suggestion = "Verify directory exists and is writable"
	}
	return failure(fmt.Sprintf("Failed to %s file: %v", op, err), suggestion)
}

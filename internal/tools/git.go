package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitOptions configures the git tools.
type GitOptions struct {
	// AuthorName and AuthorEmail sign commits when set. Otherwise the
	// repository and global git config are used.
	AuthorName  string
	AuthorEmail string
}

// Change is one entry of git_status.
type Change struct {
	Status string `json:"status"`
	File   string `json:"file"`
}

type gitArgs struct {
	ProjectPath string   `json:"project_path"`
	Message     string   `json:"message"`
	Files       []string `json:"files"`
}

func gitStatusTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        GitStatus,
			Description: "Get git status of the project repository: branch and changed files.",
			Parameters: schema([]string{"project_path"}, map[string]any{
				"project_path": stringProp("Absolute path to the project root"),
			}),
		},
		Execute: gitStatus,
	}
}

func gitCommitTool(opts GitOptions) Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        GitCommit,
			Description: "Commit changes to the project repository. Stages all changes unless files are given.",
			Parameters: schema([]string{"message", "project_path"}, map[string]any{
				"message":      stringProp("Commit message (min 3 characters)"),
				"project_path": stringProp("Absolute path to the project root"),
				"files": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Optional list of files to stage; all changes when omitted",
				},
			}),
		},
		Execute: func(ctx context.Context, raw json.RawMessage) Result {
			return gitCommit(ctx, raw, opts)
		},
	}
}

// openRepo opens the repository rooted exactly at projectPath.
func openRepo(projectPath string) (*git.Repository, string, Result) {
	root, err := resolveRoot(projectPath)
	if err != nil {
		return nil, "", failure(fmt.Sprintf("Project path not found: %s", projectPath), "Verify project path is correct")
	}
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, "", failure("Not a git repository", "Initialize git with: git init")
	}
	if err != nil {
		return nil, "", failure(fmt.Sprintf("Git status failed: %v", err), "Verify git repository is valid")
	}
	return repo, root, nil
}

func gitStatus(ctx context.Context, raw json.RawMessage) Result {
	var args gitArgs
	if res := decodeArgs(raw, &args); res != nil {
		return res
	}
	repo, _, res := openRepo(args.ProjectPath)
	if res != nil {
		return res
	}
	if err := ctx.Err(); err != nil {
		return failure("Git command timed out", "Repository might be too large or unresponsive")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return failure(fmt.Sprintf("Git status failed: %v", err), "Verify git repository is valid")
	}
	status, err := wt.Status()
	if err != nil {
		return failure(fmt.Sprintf("Git command failed: %v", err), "Check git repository state")
	}

	changes := make([]Change, 0, len(status))
	for file, fs := range status {
		code := strings.TrimSpace(string([]byte{byte(fs.Staging), byte(fs.Worktree)}))
		if code == "" {
			continue
		}
		changes = append(changes, Change{Status: code, File: file})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].File < changes[j].File })

	return Result{
		"branch":        currentBranch(repo),
		"changes":       changes,
		"clean":         len(changes) == 0,
		"total_changes": len(changes),
	}
}

// currentBranch returns the branch HEAD points at, including an unborn
// branch in a repository without commits.
func currentBranch(repo *git.Repository) string {
	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "unknown"
	}
	if ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
		return ref.Target().Short()
	}
	return "HEAD"
}

func gitCommit(ctx context.Context, raw json.RawMessage, opts GitOptions) Result {
	var args gitArgs
	if res := decodeArgs(raw, &args); res != nil {
		return res
	}
	repo, _, res := openRepo(args.ProjectPath)
	if res != nil {
		return res
	}
	if len(strings.TrimSpace(args.Message)) < 3 {
		return failure("Commit message too short", "Provide a descriptive commit message (min 3 characters)")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return failure(fmt.Sprintf("Git commit failed: %v", err), "Verify git repository and configuration")
	}

	if len(args.Files) > 0 {
		for _, f := range args.Files {
			if _, err := wt.Add(f); err != nil {
				return failure(fmt.Sprintf("Failed to stage file %s: %v", f, err), "Check if file exists and is tracked")
			}
		}
	} else if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return failure(fmt.Sprintf("Failed to stage changes: %v", err), "Check git repository state")
	}

	if err := ctx.Err(); err != nil {
		return failure("Git command timed out", "Operation took too long")
	}

	status, err := wt.Status()
	if err != nil {
		return failure(fmt.Sprintf("Git commit failed: %v", err), "Verify git repository and configuration")
	}
	if !hasStaged(status) {
		return failure("No changes to commit", "Make changes first or check git status")
	}

	commitOpts := &git.CommitOptions{}
	if opts.AuthorName != "" {
		commitOpts.Author = &object.Signature{
			Name:  opts.AuthorName,
			Email: opts.AuthorEmail,
			When:  time.Now(),
		}
	}
	hash, err := wt.Commit(args.Message, commitOpts)
	if err != nil {
		return failure(fmt.Sprintf("Commit failed: %v", err), "Check git configuration (user.name, user.email)")
	}

	var staged any = "all"
	if len(args.Files) > 0 {
		staged = len(args.Files)
	}
	return Result{
		"success":      "Changes committed successfully",
		"message":      args.Message,
		"commit":       hash.String(),
		"files_staged": staged,
	}
}

func hasStaged(status git.Status) bool {
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true
		}
	}
	return false
}

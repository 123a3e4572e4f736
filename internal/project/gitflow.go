package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

var (
	ErrBadBranchName = errors.New("invalid branch name")
	ErrNotARepo      = errors.New("workspace is not a git repository")
)

var branchNameRe = regexp.MustCompile(`^[A-Za-z0-9\-_/]+$`)

// branchMeta is the metadata file the workflow drops under .forge/.
type branchMeta struct {
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"createdAt"`
	Message   string    `json:"message,omitempty"`
}

// BranchWorkflow creates or checks out a branch, writes its metadata file,
// stages it, commits with a templated message, and pushes when an origin
// remote is configured and the caller asked for it.
func (i *Inspector) BranchWorkflow(req protocol.BranchWorkflowRequest) (*protocol.BranchWorkflowResult, error) {
	if !branchNameRe.MatchString(req.BranchName) {
		return nil, fmt.Errorf("%w: %q", ErrBadBranchName, req.BranchName)
	}
	if !i.exists(".git") {
		return nil, ErrNotARepo
	}

	res := &protocol.BranchWorkflowResult{Branch: req.BranchName}

	// Create the branch if it does not exist yet, otherwise switch to it.
	if _, err := i.git("rev-parse", "--verify", "refs/heads/"+req.BranchName); err != nil {
		if _, err := i.git("checkout", "-b", req.BranchName); err != nil {
			return nil, fmt.Errorf("create branch: %w", err)
		}
		res.Created = true
	} else {
		if _, err := i.git("checkout", req.BranchName); err != nil {
			return nil, fmt.Errorf("checkout branch: %w", err)
		}
	}

	metaPath := filepath.Join(".forge", "branch.json")
	meta := branchMeta{
		Branch:    req.BranchName,
		CreatedAt: time.Now().UTC(),
		Message:   req.Message,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	absMeta := filepath.Join(i.root, metaPath)
	if err := os.MkdirAll(filepath.Dir(absMeta), 0755); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}
	if err := os.WriteFile(absMeta, data, 0644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	res.MetaFile = filepath.ToSlash(metaPath)

	if _, err := i.git("add", metaPath); err != nil {
		return nil, fmt.Errorf("stage metadata: %w", err)
	}

	message := req.Message
	if message == "" {
		message = "start work"
	}
	commitMsg := fmt.Sprintf("chore(branch): %s — %s", req.BranchName, message)
	if _, err := i.git("commit", "-m", commitMsg); err != nil {
		// Nothing staged beyond an unchanged metadata file is not fatal.
		slog.Warn("branch workflow commit skipped", "branch", req.BranchName, "error", err)
	} else {
		res.Committed = true
	}

	if req.Push && i.hasOrigin() {
		if _, err := i.git("push", "-u", "origin", req.BranchName); err != nil {
			return nil, fmt.Errorf("push branch: %w", err)
		}
		res.Pushed = true
	}

	slog.Info("🌿 branch workflow", "branch", req.BranchName, "created", res.Created, "pushed", res.Pushed)
	return res, nil
}

func (i *Inspector) hasOrigin() bool {
	out, err := i.git("remote")
	if err != nil {
		return false
	}
	for _, r := range strings.Fields(out) {
		if r == "origin" {
			return true
		}
	}
	return false
}

// git runs one git subcommand in the workspace root.
func (i *Inspector) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = i.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

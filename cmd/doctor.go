package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/policy"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment the control plane depends on",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	ok := func(pass bool, label string, detail string) {
		mark := "✔"
		if !pass {
			mark = "✘"
		}
		fmt.Printf("%s %-28s %s\n", mark, label, detail)
	}

	cfg, err := config.Load(resolveConfigPath())
	ok(err == nil, "config", resolveConfigPath())
	if err != nil {
		fmt.Println("  ", err)
		return
	}

	workspace, _ := filepath.Abs(cfg.WorkspacePath())
	info, statErr := os.Stat(workspace)
	ok(statErr == nil && info.IsDir(), "workspace", workspace)

	_, policyErr := policy.New(workspace, cfg.Policy)
	ok(policyErr == nil, "policy patterns compile", fmt.Sprintf("%d project paths, %d credential patterns",
		len(cfg.Policy.ProjectPathPatterns), len(cfg.Policy.CredentialPatterns)))

	nodePath, nodeErr := exec.LookPath(cfg.Executor.NodeBin)
	ok(nodeErr == nil, "node runtime", nodePath)

	gitPath, gitErr := exec.LookPath("git")
	ok(gitErr == nil, "git", gitPath)

	for _, bin := range []string{"chromium", "chromium-browser", "google-chrome"} {
		if p, err := exec.LookPath(bin); err == nil {
			ok(true, "chrome (for browser ops)", p)
			return
		}
	}
	ok(false, "chrome (for browser ops)", "not found — rod will download its own on first use")
}

package project

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Analysis is the result of project type and feature detection.
type Analysis struct {
	Type        string   `json:"projectType"`
	Features    []string `json:"features"`
	Suggestions []string `json:"suggestions"`
}

// Analyze detects the project type from its manifest and filesystem
// conventions, lists notable features, and suggests improvements.
func (i *Inspector) Analyze() *Analysis {
	a := &Analysis{Type: "unknown"}

	deps := i.dependencies()
	switch {
	case deps["next"]:
		a.Type = "nextjs"
	case deps["vite"] && deps["react"]:
		a.Type = "react-vite"
	case deps["react"]:
		a.Type = "react"
	case deps["express"]:
		a.Type = "express"
	case deps["vue"]:
		a.Type = "vue"
	case i.exists("index.html"):
		a.Type = "static"
	}

	addIf := func(cond bool, feature string) {
		if cond {
			a.Features = append(a.Features, feature)
		}
	}
	addIf(i.exists("tsconfig.json"), "typescript")
	addIf(i.existsGlob("tailwind.config.*"), "tailwind")
	addIf(deps["jest"] || deps["vitest"] || i.exists("__tests__"), "tests")
	addIf(i.exists("Dockerfile"), "docker")
	addIf(i.exists(".git"), "git")
	addIf(i.existsGlob(".eslintrc*") || deps["eslint"], "eslint")

	suggestIf := func(cond bool, s string) {
		if cond {
			a.Suggestions = append(a.Suggestions, s)
		}
	}
	suggestIf(!i.exists("README.md"), "Add a README.md describing the project")
	suggestIf(!i.exists(".gitignore"), "Add a .gitignore (node_modules, build output)")
	suggestIf(a.Type != "static" && !deps["jest"] && !deps["vitest"] && !i.exists("__tests__"),
		"Add a test setup (vitest or jest)")
	suggestIf(a.Type == "unknown" && !i.exists("package.json"),
		"No package.json found — scaffold a project from a template")

	return a
}

// dependencies merges dependencies and devDependencies names.
func (i *Inspector) dependencies() map[string]bool {
	deps := make(map[string]bool)
	data, err := os.ReadFile(filepath.Join(i.root, "package.json"))
	if err != nil {
		return deps
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if json.Unmarshal(data, &manifest) != nil {
		return deps
	}
	for name := range manifest.Dependencies {
		deps[name] = true
	}
	for name := range manifest.DevDependencies {
		deps[name] = true
	}
	return deps
}

func (i *Inspector) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(i.root, rel))
	return err == nil
}

func (i *Inspector) existsGlob(pattern string) bool {
	matches, err := filepath.Glob(filepath.Join(i.root, pattern))
	return err == nil && len(matches) > 0
}

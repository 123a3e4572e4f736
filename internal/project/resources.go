// Package project provides the ambient project operations: metadata
// resources, project analysis and the git branch workflow.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resources is the response of the key-names-and-resources operation. Env
// variable names are surfaced, never their values.
type Resources struct {
	Manifest map[string]interface{} `json:"packageManifest,omitempty"`
	EnvNames []string               `json:"envVariableNames"`
	Docs     map[string]string      `json:"docResources,omitempty"`
}

// Inspector reads ambient metadata from a workspace root.
type Inspector struct {
	root string
	docs map[string]string
}

// NewInspector creates an inspector with configured doc resources.
func NewInspector(root string, docs map[string]string) *Inspector {
	return &Inspector{root: root, docs: docs}
}

// Resources returns the package manifest, the names of the process
// environment variables, and any configured doc resources.
func (i *Inspector) Resources() *Resources {
	res := &Resources{Docs: i.docs}

	if data, err := os.ReadFile(filepath.Join(i.root, "package.json")); err == nil {
		var manifest map[string]interface{}
		if json.Unmarshal(data, &manifest) == nil {
			res.Manifest = manifest
		}
	}

	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok {
			res.EnvNames = append(res.EnvNames, name)
		}
	}
	sort.Strings(res.EnvNames)
	return res
}

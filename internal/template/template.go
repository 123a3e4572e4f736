// Package template scaffolds new projects from bundled templates. A
// template is a recursive tree where string leaves are file contents and
// map nodes are directories. Directories are created sequentially in
// depth-first order so parents exist before children; file writes at each
// level fan out in parallel through the file operations service.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/goforge/internal/files"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrProjectExists   = errors.New("project directory already exists")
	ErrBadProjectName  = errors.New("invalid project name")
)

// ErrorKind maps a template error to its stable wire kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTemplate):
		return "UnknownTemplate"
	case errors.Is(err, ErrProjectExists):
		return "ProjectExists"
	case errors.Is(err, ErrBadProjectName):
		return "InvalidProjectName"
	default:
		return "IOError"
	}
}

// Node is one entry of a template tree.
type Node interface{ isNode() }

// File is a leaf: its value is the file content.
type File string

// Dir maps child names to nodes.
type Dir map[string]Node

func (File) isNode() {}
func (Dir) isNode()  {}

// Template is one bundled project scaffold.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tree        Dir    `json:"-"`
}

var projectNameRe = regexp.MustCompile(`^[\w-]+$`)

// Generator walks template trees into the workspace.
type Generator struct {
	svc       *files.Service
	templates map[string]Template
}

// NewGenerator registers the bundled templates against a file service.
func NewGenerator(svc *files.Service) *Generator {
	g := &Generator{svc: svc, templates: make(map[string]Template)}
	for _, t := range builtinTemplates() {
		g.templates[t.ID] = t
	}
	return g
}

// List returns template metadata sorted by ID.
func (g *Generator) List() []Template {
	out := make([]Template, 0, len(g.templates))
	for _, t := range g.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Generate scaffolds templateID into a new directory named projectName.
// Generating into an existing directory fails without touching it.
func (g *Generator) Generate(ctx context.Context, templateID, projectName string) (*protocol.TemplateResult, error) {
	ctx, span := otel.Tracer("goforge/template").Start(ctx, "template.generate")
	defer span.End()
	span.SetAttributes(attribute.String("template.id", templateID))

	if !projectNameRe.MatchString(projectName) {
		return nil, fmt.Errorf("%w: %q", ErrBadProjectName, projectName)
	}
	tmpl, ok := g.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}

	projectDir := filepath.Join(g.svc.Root(), projectName)
	if _, err := os.Stat(projectDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, projectName)
	}

	res := &protocol.TemplateResult{
		TemplateID:  templateID,
		ProjectName: projectName,
	}
	if err := g.walk(ctx, projectName, tmpl.Tree, res); err != nil {
		return nil, err
	}

	slog.Info("🧱 project generated",
		"template", templateID,
		"project", projectName,
		"dirs", res.Directories,
		"files", res.Files,
	)
	return res, nil
}

// walk creates one directory level: the directory itself, then all files at
// this level in parallel, then each subdirectory in sequence.
func (g *Generator) walk(ctx context.Context, rel string, dir Dir, res *protocol.TemplateResult) error {
	abs := filepath.Join(g.svc.Root(), rel)
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", rel, err)
	}
	res.Directories++
	res.Records = append(res.Records, protocol.TemplateRecord{Type: "directory", Path: filepath.ToSlash(rel)})

	// Deterministic child order keeps the record listing stable.
	names := make([]string, 0, len(dir))
	for name := range dir {
		names = append(names, name)
	}
	sort.Strings(names)

	grp, gctx := errgroup.WithContext(ctx)
	type fileRecord struct {
		path string
		size int64
	}
	written := make([]fileRecord, 0, len(names))
	var idx int
	for _, name := range names {
		if content, ok := dir[name].(File); ok {
			relPath := filepath.ToSlash(filepath.Join(rel, name))
			slot := idx
			idx++
			written = append(written, fileRecord{})
			grp.Go(func() error {
				out, err := g.svc.Create(gctx, relPath, string(content), false)
				if err != nil {
					return fmt.Errorf("write %s: %w", relPath, err)
				}
				written[slot] = fileRecord{path: relPath, size: out.Size}
				return nil
			})
		}
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for _, fr := range written {
		res.Files++
		res.Records = append(res.Records, protocol.TemplateRecord{Type: "file", Path: fr.path, Size: fr.size})
	}

	for _, name := range names {
		if sub, ok := dir[name].(Dir); ok {
			if err := g.walk(ctx, filepath.Join(rel, name), sub, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// Package specgen turns a spec document into generated files. A spec
// is a YAML manifest naming an output directory and a list of file
// entries whose paths and contents may carry {{name}} placeholders
// resolved from the spec's own variables.
package specgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/watzon/relay/internal/tmpl"
)

// Spec is the parsed form of a spec document.
type Spec struct {
	Name   string         `yaml:"name"`
	Output string         `yaml:"output,omitempty"`
	Vars   map[string]any `yaml:"vars,omitempty"`
	Files  []FileSpec     `yaml:"files"`
}

// FileSpec describes one file to generate.
type FileSpec struct {
	Path      string `yaml:"path"`
	Content   string `yaml:"content"`
	Overwrite bool   `yaml:"overwrite,omitempty"`
}

// BuildResult summarizes one build: how many files were written and
// how long it took. Skipped counts entries left alone because the
// target already existed.
type BuildResult struct {
	SpecName   string   `json:"spec_name"`
	FileCount  int      `json:"file_count"`
	Skipped    int      `json:"skipped"`
	DurationMs int      `json:"duration_ms"`
	Files      []string `json:"files,omitempty"`
}

// GenerationError reports a failed build with the spec it belongs to.
type GenerationError struct {
	SpecPath string
	Message  string
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("building %s: %s", e.SpecPath, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Builder loads and executes spec documents.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Parse reads and validates a spec document without generating
// anything.
func (b *Builder) Parse(specPath string) (*Spec, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, &GenerationError{SpecPath: specPath, Message: "unreadable spec", Cause: err}
	}

	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, &GenerationError{SpecPath: specPath, Message: "unparseable spec", Cause: err}
	}

	if spec.Name == "" {
		return nil, &GenerationError{SpecPath: specPath, Message: "spec has no name"}
	}
	if len(spec.Files) == 0 {
		return nil, &GenerationError{SpecPath: specPath, Message: "spec has no files"}
	}
	for i, f := range spec.Files {
		if f.Path == "" {
			return nil, &GenerationError{SpecPath: specPath, Message: fmt.Sprintf("files[%d] has no path", i)}
		}
	}
	return spec, nil
}

// Build parses the spec and generates its files. Relative output paths
// resolve against the spec document's directory. Existing files are
// left alone unless the entry sets overwrite.
func (b *Builder) Build(ctx context.Context, specPath string) (*BuildResult, error) {
	start := time.Now()

	spec, err := b.Parse(specPath)
	if err != nil {
		return nil, err
	}

	outDir := spec.Output
	if outDir == "" {
		outDir = "."
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(filepath.Dir(specPath), outDir)
	}

	res := &BuildResult{SpecName: spec.Name}
	for _, f := range spec.Files {
		if err := ctx.Err(); err != nil {
			return nil, &GenerationError{SpecPath: specPath, Message: "build canceled", Cause: err}
		}

		relPath := tmpl.Expand(f.Path, spec.Vars, nil)
		target := filepath.Join(outDir, relPath)

		if !f.Overwrite {
			if _, err := os.Stat(target); err == nil {
				res.Skipped++
				continue
			}
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, &GenerationError{SpecPath: specPath, Message: fmt.Sprintf("creating directory for %s", relPath), Cause: err}
		}

		content := tmpl.Expand(f.Content, spec.Vars, nil)
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return nil, &GenerationError{SpecPath: specPath, Message: fmt.Sprintf("writing %s", relPath), Cause: err}
		}

		res.FileCount++
		res.Files = append(res.Files, target)
	}

	res.DurationMs = int(time.Since(start).Milliseconds())

	log.Debug().
		Str("spec", spec.Name).
		Int("files", res.FileCount).
		Int("skipped", res.Skipped).
		Msg("Spec build finished")
	return res, nil
}

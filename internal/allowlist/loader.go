package allowlist

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// FileLoader loads allow patterns from YAML files. The file is read once at
// startup, there is no reload.
type FileLoader struct {
	fs fs.FS
}

// NewFileLoader returns a new allow patterns file loader.
func NewFileLoader(filesystem fs.FS) *FileLoader {
	return &FileLoader{fs: filesystem}
}

// Load reads the patterns file and returns the patterns in file order.
func (l *FileLoader) Load(ctx context.Context, path string) ([]model.AllowPattern, error) {
	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading allowlist file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var f patternsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid allowlist file: %w", err)
	}

	return f.toModel(), nil
}

// patternsFile represents the YAML structure of an allowlist file.
//
//	patterns:
//	  - pattern: '^uptime$'
//	    description: System uptime
type patternsFile struct {
	Patterns []patternEntry `yaml:"patterns"`
}

type patternEntry struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
}

func (f patternsFile) validate() error {
	if len(f.Patterns) == 0 {
		return fmt.Errorf("patterns are required: %w", model.ErrNotValid)
	}

	for i, p := range f.Patterns {
		if p.Pattern == "" {
			return fmt.Errorf("pattern %d is empty: %w", i+1, model.ErrNotValid)
		}
		if err := checkAnchored(p.Pattern); err != nil {
			return fmt.Errorf("pattern %d %q: %w", i+1, p.Pattern, err)
		}
	}

	return nil
}

func (f patternsFile) toModel() []model.AllowPattern {
	ps := make([]model.AllowPattern, 0, len(f.Patterns))
	for _, p := range f.Patterns {
		ps = append(ps, model.AllowPattern{Expr: p.Pattern, Description: p.Description})
	}
	return ps
}

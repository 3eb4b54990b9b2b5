package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Catalog implements ports.WorkflowCatalog over a directory of workflow documents.
// Loaded graphs are cached by file name, so "intro" and "intro.yaml" share an entry;
// Save refreshes it.
type Catalog struct {
	BasePath string

	parser *compiler.Parser
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*domain.Graph
}

var _ ports.WorkflowCatalog = (*Catalog)(nil)

// Option configures the Catalog.
type Option func(*Catalog)

// WithLogger configures a logger for the Catalog.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates a Catalog over basePath.
// If basePath is empty, it defaults to "workflows".
func New(basePath string, opts ...Option) *Catalog {
	if basePath == "" {
		basePath = "workflows"
	}
	c := &Catalog{
		BasePath: basePath,
		parser:   compiler.NewParser(),
		logger:   logging.NewNop(),
		cache:    make(map[string]*domain.Graph),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// validName rejects names that would escape the catalog directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("workflow name cannot be empty")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid workflow name %q", name)
	}
	return nil
}

func hasKnownExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// locate finds the file for name, trying known extensions when name has none.
func (c *Catalog) locate(name string) (string, error) {
	candidates := []string{name}
	if !hasKnownExt(name) {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(filepath.Join(c.BasePath, candidate)); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
}

// Load reads and parses the named workflow.
func (c *Catalog) Load(ctx context.Context, name string) (*domain.Graph, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	file, err := c.locate(name)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	g, ok := c.cache[file]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}

	data, err := os.ReadFile(filepath.Join(c.BasePath, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
		}
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	g, err = c.parser.Parse(file, data, compiler.FormatFromPath(file))
	if err != nil {
		return nil, err
	}
	if dangling := g.DanglingEdges(); len(dangling) > 0 {
		c.logger.Warn("Workflow has answers pointing to missing nodes", "workflow", file, "edges", dangling)
	}

	c.mu.Lock()
	c.cache[file] = g
	c.mu.Unlock()
	return g, nil
}

// List returns the workflow file names in the directory.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && hasKnownExt(entry.Name()) && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Save writes the workflow atomically, in the format of its extension. A name without
// a known extension overwrites the existing file it resolves to, or creates a JSON one.
func (c *Catalog) Save(ctx context.Context, name string, graph *domain.Graph) error {
	if err := validName(name); err != nil {
		return err
	}
	file := name
	if !hasKnownExt(file) {
		if existing, err := c.locate(name); err == nil {
			file = existing
		} else {
			file += ".json"
		}
	}

	data, err := compiler.Encode(graph, compiler.FormatFromPath(file))
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	if err := writeAtomic(c.BasePath, file, data); err != nil {
		return err
	}

	c.mu.Lock()
	c.cache[file] = graph
	c.mu.Unlock()

	c.logger.Debug("Workflow saved", "workflow", file, "nodes", graph.Len())
	return nil
}

// writeAtomic writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func writeAtomic(dir, file string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure workflow directory: %w", err)
	}
	destPath := filepath.Join(dir, file)

	// Same directory as the destination: rename is only atomic within a filesystem.
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+file+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing workflow file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to workflow: %w", err)
	}
	return nil
}

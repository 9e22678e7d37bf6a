package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Format is the on-disk encoding of a model document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown model format %q: use .yaml or .json", filepath.Ext(path))
	}
}

// Encode serializes m.
func Encode(m *models.Model, format Format) ([]byte, error) {
	doc := m.Document()
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown model format %q", format)
	}
}

func decode(data []byte, format Format) (*models.Document, error) {
	var doc models.Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unknown model format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s model: %w", format, err)
	}
	return &doc, nil
}

// ReadFile loads a model document from path. The format follows the
// extension.
func ReadFile(path string) (*models.Model, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading model: %w", err)
	}
	doc, err := decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return models.FromDocument(doc)
}

// WriteFile saves m to path atomically. The format follows the extension.
func WriteFile(path string, m *models.Model) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(m, format)
	if err != nil {
		return fmt.Errorf("encoding model %s: %w", m.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing model file: %w", err)
	}
	return nil
}

// FileStore keeps one document per model in a directory.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	format Format
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir writing documents in format.
func NewFileStore(dir string, format Format, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if format == "" {
		format = FormatYAML
	}
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("unknown model format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating model directory: %w", err)
	}
	return &FileStore{dir: dir, format: format, logger: logger}, nil
}

func (s *FileStore) path(id string, format Format) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
	return filepath.Join(s.dir, name+"."+string(format))
}

// find returns the path holding id in either format, preferring the
// configured one.
func (s *FileStore) find(id string) (string, bool) {
	for _, f := range []Format{s.format, FormatYAML, FormatJSON} {
		p := s.path(id, f)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, m *models.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ID == "" {
		return fmt.Errorf("saving model: empty identifier")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.path(m.ID, s.format)
	if err := WriteFile(target, m); err != nil {
		return err
	}
	// Drop a copy left in the other format.
	for _, f := range []Format{FormatYAML, FormatJSON} {
		if p := s.path(m.ID, f); p != target {
			_ = os.Remove(p)
		}
	}
	s.logger.Debug("model saved", "model", m.ID, "path", target)
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, id string) (*models.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ReadFile(p)
}

// List implements Store. Unreadable documents are logged and skipped.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		format, err := FormatForPath(e.Name())
		if err != nil {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable model", "path", path, "error", err)
			continue
		}
		doc, err := decode(data, format)
		if err != nil {
			s.logger.Warn("skipping malformed model", "path", path, "error", err)
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, infoOf(doc, fi.ModTime().UTC()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("deleting model %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; every operation opens and closes its own file.
func (s *FileStore) Close() error { return nil }

package retrieval

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// VersionsFile is the ledger of database releases inside the cache root.
const VersionsFile = "DatabaseVersions.csv"

// ErrVersionMismatch is wrapped by VersionMismatchError.
var ErrVersionMismatch = errors.New("database version mismatch")

// VersionMismatchError reports a fetched record whose database release
// differs from the release pinned in the ledger.
type VersionMismatchError struct {
	Database string
	Local    string
	Remote   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("versions of %s do not match: remote has %s, local data is %s", e.Database, e.Remote, e.Local)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// Versions pins the release of every database the cache has seen. The first
// release recorded for a database is kept; later fetches reporting another
// release are logged, or rejected when force is set.
type Versions struct {
	mu      sync.Mutex
	path    string
	force   bool
	loaded  bool
	order   []string
	release map[string]string
	logger  *slog.Logger
}

// NewVersions returns the ledger stored in dir. It is read on first use.
func NewVersions(dir string, logger *slog.Logger) *Versions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Versions{
		path:    filepath.Join(dir, VersionsFile),
		release: make(map[string]string),
		logger:  logger,
	}
}

// SetForce makes a mismatch an error instead of a warning.
func (v *Versions) SetForce(force bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.force = force
}

func versionKey(database string) string {
	return strings.ToUpper(strings.TrimSpace(database))
}

func (v *Versions) load() error {
	if v.loaded {
		return nil
	}
	f, err := os.Open(v.path)
	if errors.Is(err, os.ErrNotExist) {
		v.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening version ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("reading version ledger: %w", err)
	}
	for i, row := range rows {
		if i == 0 && row[0] == "orgid" {
			continue
		}
		key := versionKey(row[0])
		if _, dup := v.release[key]; !dup {
			v.order = append(v.order, key)
		}
		v.release[key] = row[1]
	}
	v.loaded = true
	return nil
}

func (v *Versions) save() error {
	if err := os.MkdirAll(filepath.Dir(v.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".versions-*")
	if err != nil {
		return fmt.Errorf("creating version ledger: %w", err)
	}
	w := csv.NewWriter(tmp)
	_ = w.Write([]string{"orgid", "version"})
	for _, key := range v.order {
		_ = w.Write([]string{key, v.release[key]})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing version ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing version ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), v.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing version ledger: %w", err)
	}
	return nil
}

// Check compares release with the pinned release of database and pins it
// when the database is new. An empty release is not recorded.
func (v *Versions) Check(database, release string) error {
	release = strings.TrimSpace(release)
	if release == "" {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.load(); err != nil {
		return err
	}

	key := versionKey(database)
	pinned, ok := v.release[key]
	if !ok {
		v.order = append(v.order, key)
		v.release[key] = release
		if err := v.save(); err != nil {
			return err
		}
		v.logger.Info("pinned database release", "database", key, "version", release)
		return nil
	}
	if pinned == release {
		return nil
	}

	v.logger.Warn("database release differs from cached data",
		"database", key, "local", pinned, "remote", release)
	if v.force {
		return &VersionMismatchError{Database: key, Local: pinned, Remote: release}
	}
	return nil
}

// Get returns the pinned release of database.
func (v *Versions) Get(database string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.load(); err != nil {
		return "", false, err
	}
	rel, ok := v.release[versionKey(database)]
	return rel, ok, nil
}

// All returns the pinned releases in the order they were first seen.
func (v *Versions) All() ([][2]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.load(); err != nil {
		return nil, err
	}
	out := make([][2]string, 0, len(v.order))
	for _, key := range v.order {
		out = append(out, [2]string{key, v.release[key]})
	}
	return out, nil
}

// Forget drops the pin of database, or every pin when database is empty.
func (v *Versions) Forget(database string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if database == "" {
		v.order, v.release, v.loaded = nil, make(map[string]string), true
		if err := os.Remove(v.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing version ledger: %w", err)
		}
		return nil
	}
	if err := v.load(); err != nil {
		return err
	}
	key := versionKey(database)
	if _, ok := v.release[key]; !ok {
		return nil
	}
	delete(v.release, key)
	for i, k := range v.order {
		if k == key {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return v.save()
}

// Package xref keeps a local table of cross-reference aliases: pairs of
// (database, identifier) known to name the same compound. The merge engine
// consults it to match metabolites whose references differ only in the
// database they point at.
package xref

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Lookup expands a reference into its known aliases.
type Lookup interface {
	Lookup(ctx context.Context, database, identifier string) ([]models.XRef, error)
}

// Mapping is one alias row. Rows are directional; Put writes both
// directions.
type Mapping struct {
	SourceDB  string `gorm:"primaryKey;size:64"`
	SourceID  string `gorm:"primaryKey;size:255"`
	AliasDB   string `gorm:"primaryKey;size:64"`
	AliasID   string `gorm:"primaryKey;size:255"`
	Origin    string `gorm:"index;size:255"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Mapping) TableName() string { return "xref_mappings" }

// Store is a SQLite-backed alias table.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens the alias table at path, creating the file and schema if
// needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening xref database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Mapping{}); err != nil {
		return nil, fmt.Errorf("migrating xref database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func normalize(x models.XRef) models.XRef {
	return models.XRef{
		Database:   strings.ToUpper(strings.TrimSpace(x.Database)),
		Identifier: strings.TrimSpace(x.Identifier),
	}
}

// Put records that every alias names the same thing as ref. origin tags
// the rows so that Invalidate can drop them together.
func (s *Store) Put(ctx context.Context, origin string, ref models.XRef, aliases ...models.XRef) error {
	ref = normalize(ref)
	if ref.Database == "" || ref.Identifier == "" {
		return fmt.Errorf("xref put: empty reference %q", ref.String())
	}
	now := time.Now().UTC()
	var rows []Mapping
	for _, a := range aliases {
		a = normalize(a)
		if a.Database == "" || a.Identifier == "" || a == ref {
			continue
		}
		rows = append(rows,
			Mapping{SourceDB: ref.Database, SourceID: ref.Identifier, AliasDB: a.Database, AliasID: a.Identifier, Origin: origin, UpdatedAt: now},
			Mapping{SourceDB: a.Database, SourceID: a.Identifier, AliasDB: ref.Database, AliasID: ref.Identifier, Origin: origin, UpdatedAt: now},
		)
	}
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_db"}, {Name: "source_id"}, {Name: "alias_db"}, {Name: "alias_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"origin", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("xref put %s: %w", ref, err)
	}
	return nil
}

// Lookup implements Lookup. Unknown references yield no aliases and no
// error.
func (s *Store) Lookup(ctx context.Context, database, identifier string) ([]models.XRef, error) {
	ref := normalize(models.XRef{Database: database, Identifier: identifier})
	var rows []Mapping
	err := s.db.WithContext(ctx).
		Where("source_db = ? AND source_id = ?", ref.Database, ref.Identifier).
		Order("alias_db, alias_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("xref lookup %s: %w", ref, err)
	}
	out := make([]models.XRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.XRef{Database: r.AliasDB, Identifier: r.AliasID})
	}
	return out, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Mapping{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting xrefs: %w", err)
	}
	return n, nil
}

// Invalidate deletes the rows tagged with origin, or every row when origin
// is empty. It returns the number of deleted rows.
func (s *Store) Invalidate(ctx context.Context, origin string) (int64, error) {
	tx := s.db.WithContext(ctx)
	if origin == "" {
		tx = tx.Where("1 = 1")
	} else {
		tx = tx.Where("origin = ?", origin)
	}
	res := tx.Delete(&Mapping{})
	if res.Error != nil {
		return 0, fmt.Errorf("invalidating xrefs: %w", res.Error)
	}
	s.logger.Info("xrefs invalidated", "origin", origin, "rows", res.RowsAffected)
	return res.RowsAffected, nil
}

// ImportCSV reads rows of "database,identifier,alias_database,alias_identifier".
// A header row starting with "database" is skipped. All rows are written in
// one transaction.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader, origin string) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	type pair struct{ ref, alias models.XRef }
	var pairs []pair
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading xref csv: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "database") {
			continue
		}
		pairs = append(pairs, pair{
			ref:   models.XRef{Database: rec[0], Identifier: rec[1]},
			alias: models.XRef{Database: rec[2], Identifier: rec[3]},
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &Store{db: tx, logger: s.logger}
		for _, p := range pairs {
			if err := inner.Put(ctx, origin, p.ref, p.alias); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("xrefs imported", "origin", origin, "pairs", len(pairs))
	return len(pairs), nil
}

// SeedFromModel links the cross-references each metabolite of m carries to
// one another, so that later merges can match on any of them.
func (s *Store) SeedFromModel(ctx context.Context, m *models.Model) (int, error) {
	origin := "model:" + m.ID
	linked := 0
	for _, met := range m.Metabolites() {
		pairs := met.XRefs.Pairs()
		if len(pairs) < 2 {
			continue
		}
		for i := 0; i < len(pairs)-1; i++ {
			if err := s.Put(ctx, origin, pairs[i], pairs[i+1:]...); err != nil {
				return linked, fmt.Errorf("seeding %s: %w", met.ID, err)
			}
		}
		linked++
	}
	s.logger.Info("xrefs seeded from model", "model", m.ID, "metabolites", linked)
	return linked, nil
}

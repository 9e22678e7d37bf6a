package models

import (
	"sort"
	"strings"
)

// XRefs maps an external database name to the identifiers an entity carries there.
type XRefs map[string][]string

// XRef is a single (database, identifier) pair.
type XRef struct {
	Database   string `json:"database" yaml:"database"`
	Identifier string `json:"identifier" yaml:"identifier"`
}

// String renders the pair as DATABASE:ID.
func (x XRef) String() string {
	return x.Database + ":" + x.Identifier
}

// ParseXRef splits "DB:ID" (or "DB: ID") into a pair. The second return
// value is false when no separator is present.
func ParseXRef(s string) (XRef, bool) {
	db, id, ok := strings.Cut(s, ":")
	if !ok {
		return XRef{}, false
	}
	db = strings.TrimSpace(db)
	id = strings.TrimSpace(id)
	if db == "" || id == "" {
		return XRef{}, false
	}
	return XRef{Database: db, Identifier: id}, true
}

// Add records identifier under database, ignoring duplicates.
func (x XRefs) Add(database, identifier string) {
	database = strings.TrimSpace(database)
	identifier = strings.TrimSpace(identifier)
	if database == "" || identifier == "" {
		return
	}
	for _, existing := range x[database] {
		if existing == identifier {
			return
		}
	}
	x[database] = append(x[database], identifier)
}

// Has reports whether identifier is listed under database. Database names
// are compared case-insensitively.
func (x XRefs) Has(database, identifier string) bool {
	for db, ids := range x {
		if !strings.EqualFold(db, database) {
			continue
		}
		for _, id := range ids {
			if id == identifier {
				return true
			}
		}
	}
	return false
}

// Pairs returns every (database, identifier) pair sorted by database then id.
func (x XRefs) Pairs() []XRef {
	out := make([]XRef, 0, len(x))
	for db, ids := range x {
		for _, id := range ids {
			out = append(out, XRef{Database: db, Identifier: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Database != out[j].Database {
			return out[i].Database < out[j].Database
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

// Overlap returns the first pair of x (in Pairs order) that other also carries.
func (x XRefs) Overlap(other XRefs) (XRef, bool) {
	if len(x) == 0 || len(other) == 0 {
		return XRef{}, false
	}
	for _, p := range x.Pairs() {
		if other.Has(p.Database, p.Identifier) {
			return p, true
		}
	}
	return XRef{}, false
}

// Merge adds every pair of other into x.
func (x XRefs) Merge(other XRefs) {
	for db, ids := range other {
		for _, id := range ids {
			x.Add(db, id)
		}
	}
}

// Clone returns a deep copy.
func (x XRefs) Clone() XRefs {
	if x == nil {
		return nil
	}
	out := make(XRefs, len(x))
	for db, ids := range x {
		out[db] = append([]string(nil), ids...)
	}
	return out
}

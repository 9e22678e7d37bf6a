package models

import (
	"strconv"
	"strings"
)

// RecordKind identifies what a parsed record describes.
type RecordKind string

const (
	RecordCompound RecordKind = "compound"
	RecordReaction RecordKind = "reaction"
	RecordPathway  RecordKind = "pathway"
)

// Normalized field vocabulary shared by every parser.
const (
	FieldName           = "name"
	FieldFormula        = "formula"
	FieldCharge         = "charge"
	FieldLeft           = "participants_left"
	FieldRight          = "participants_right"
	FieldDirection      = "direction"
	FieldXRef           = "xref"
	FieldEnzyme         = "enzyme"
	FieldPathwayMaps    = "pathway_maps"
	FieldGenes          = "genes"
	FieldGeneRule       = "gene_rule"
	FieldMembers        = "members"
	FieldSubPathways    = "sub_pathway_refs"
	FieldOrthology      = "orthology"
	FieldDefinition     = "definition"
	FieldComment        = "comment"
	FieldParticipantsDB = "participants_database"
)

// ModuleStep is one step of a pathway module: a list of alternatives, each
// alternative being the set of orthologs that together perform the step.
type ModuleStep struct {
	Alternatives [][]string `json:"alternatives"`
	Reaction     string     `json:"reaction,omitempty"`
}

// Orthologs returns every ortholog of the step in declaration order.
func (s ModuleStep) Orthologs() []string {
	var out []string
	for _, alt := range s.Alternatives {
		out = append(out, alt...)
	}
	return out
}

// Record is the database-independent intermediate form of a parsed entry.
// Fields uses the normalized vocabulary; Extra keeps source fields that have
// no normalized counterpart, verbatim.
type Record struct {
	Kind     RecordKind                `json:"kind"`
	ID       string                    `json:"id"`
	Database string                    `json:"database"`
	Fields   map[string][]string       `json:"fields"`
	Extra    map[string][]string       `json:"extra,omitempty"`
	Steps    []ModuleStep              `json:"steps,omitempty"`
	Edges    []Edge                    `json:"edges,omitempty"`
	Layout   map[string]ReactionLayout `json:"layout,omitempty"`
}

// NewRecord returns a record with initialized maps.
func NewRecord(kind RecordKind, id, database string) Record {
	return Record{
		Kind:     kind,
		ID:       id,
		Database: database,
		Fields:   make(map[string][]string),
		Extra:    make(map[string][]string),
	}
}

// Set replaces the values of a normalized field.
func (r *Record) Set(key string, values ...string) {
	r.Fields[key] = values
}

// Add appends values to a normalized field.
func (r *Record) Add(key string, values ...string) {
	r.Fields[key] = append(r.Fields[key], values...)
}

// AddExtra appends values to a source field kept verbatim.
func (r *Record) AddExtra(key string, values ...string) {
	if r.Extra == nil {
		r.Extra = make(map[string][]string)
	}
	r.Extra[key] = append(r.Extra[key], values...)
}

// First returns the first value of a field or "".
func (r Record) First(key string) string {
	if v := r.Fields[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of a field.
func (r Record) Values(key string) []string {
	return r.Fields[key]
}

// Name returns the display name, falling back to the identifier.
func (r Record) Name() string {
	if n := r.First(FieldName); n != "" {
		return n
	}
	return r.ID
}

// Direction returns the declared direction or DirectionUnknown.
func (r Record) Direction() Direction {
	d := Direction(r.First(FieldDirection))
	if d == "" || !d.IsValid() {
		return DirectionUnknown
	}
	return d
}

// XRefs collects the "DB:ID" entries of the xref field.
func (r Record) XRefs() XRefs {
	out := make(XRefs)
	for _, v := range r.Values(FieldXRef) {
		if x, ok := ParseXRef(v); ok {
			out.Add(x.Database, x.Identifier)
		}
	}
	return out
}

// RawParticipant is a coefficient/identifier pair before canonicalization.
type RawParticipant struct {
	ID          string
	Coefficient float64
}

// EncodeParticipant renders a participant as "coef id".
func EncodeParticipant(coefficient float64, id string) string {
	return strconv.FormatFloat(coefficient, 'g', -1, 64) + " " + id
}

// DecodeParticipant parses a "coef id" or bare "id" participant entry.
func DecodeParticipant(s string) (RawParticipant, bool) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return RawParticipant{ID: fields[0], Coefficient: 1}, true
	case 2:
		c, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || c <= 0 || !ValidCoefficient(c) {
			return RawParticipant{}, false
		}
		return RawParticipant{ID: fields[1], Coefficient: c}, true
	default:
		return RawParticipant{}, false
	}
}

// Participants decodes one side of a reaction record. Malformed entries are
// skipped; parsers validate them at parse time.
func (r Record) Participants(key string) []RawParticipant {
	var out []RawParticipant
	for _, v := range r.Values(key) {
		if p, ok := DecodeParticipant(v); ok {
			out = append(out, p)
		}
	}
	return out
}

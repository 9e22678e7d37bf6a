package parser

import (
	"bufio"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// FormatCustom names the user-authored line syntax in parse errors.
const FormatCustom Format = "custom"

// EntryKind discriminates the variants of Entry.
type EntryKind int

const (
	// EntryDatabaseRef is "identifier[, compartment]": fetch from a database.
	EntryDatabaseRef EntryKind = iota + 1
	// EntryCustomMetabolite is "id, name, compartment, formula, charge".
	EntryCustomMetabolite
	// EntryCustomReaction is "id, name | met:coeff, met:coeff" or
	// "id, name | 2 a_c + b_c --> c_c".
	EntryCustomReaction
)

// String implements fmt.Stringer.
func (k EntryKind) String() string {
	switch k {
	case EntryDatabaseRef:
		return "database_ref"
	case EntryCustomMetabolite:
		return "custom_metabolite"
	case EntryCustomReaction:
		return "custom_reaction"
	default:
		return "invalid"
	}
}

// DatabaseRef points at an entity in a remote database.
type DatabaseRef struct {
	Identifier  string
	Compartment string
}

// CustomMetabolite is a metabolite fully described by the user.
type CustomMetabolite struct {
	ID          string
	Name        string
	Compartment string
	Formula     string
	Charge      int
}

// CustomReaction is a reaction described by the user. Participant ids are
// expected to carry their compartment suffix already.
type CustomReaction struct {
	ID           string
	Name         string
	Participants []models.Participant
	Direction    models.Direction
}

// Entry is one line of user input. Only the field matching Kind is set.
type Entry struct {
	Kind       EntryKind
	Ref        DatabaseRef
	Metabolite CustomMetabolite
	Reaction   CustomReaction
	Line       string
}

// ParseEntry classifies and parses a single line. The variant is decided by
// delimiters only: a "|" makes a reaction, five comma-separated fields a
// metabolite and one or two fields a database reference.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Entry{}, parseErr(FormatCustom, line, "empty entry", nil)
	}
	if strings.Contains(line, "|") {
		return customReaction(line)
	}
	fields := splitComma(line)
	switch len(fields) {
	case 1, 2:
		ref := DatabaseRef{Identifier: fields[0]}
		if len(fields) == 2 {
			ref.Compartment = fields[1]
		}
		if ref.Identifier == "" {
			return Entry{}, parseErr(FormatCustom, line, "empty identifier", nil)
		}
		return Entry{Kind: EntryDatabaseRef, Ref: ref, Line: line}, nil
	case 5:
		return customMetabolite(line, fields)
	default:
		return Entry{}, parseErr(FormatCustom, line, "expected 1, 2 or 5 comma-separated fields, or a '|' delimiter", nil)
	}
}

// ParseEntries reads one entry per line. Blank lines and lines starting with
// "#" are skipped. Inline strings go through the same path via
// strings.NewReader.
func ParseEntries(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, parseErr(FormatCustom, "", "reading entries", err)
	}
	return out, nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func customMetabolite(line string, f []string) (Entry, error) {
	if f[0] == "" {
		return Entry{}, parseErr(FormatCustom, line, "empty identifier", nil)
	}
	if f[2] == "" {
		return Entry{}, parseErr(FormatCustom, line, "empty compartment", nil)
	}
	charge := 0
	if f[4] != "" {
		c, err := strconv.ParseFloat(f[4], 64)
		if err != nil || math.IsInf(c, 0) || c != math.Trunc(c) {
			return Entry{}, parseErr(FormatCustom, line, "charge must be an integer", err)
		}
		charge = int(c)
	}
	name := f[1]
	if name == "" {
		name = f[0]
	}
	return Entry{
		Kind: EntryCustomMetabolite,
		Metabolite: CustomMetabolite{
			ID:          f[0],
			Name:        name,
			Compartment: f[2],
			Formula:     f[3],
			Charge:      charge,
		},
		Line: line,
	}, nil
}

func customReaction(line string) (Entry, error) {
	head, body, _ := strings.Cut(line, "|")
	if strings.Contains(body, "|") {
		return Entry{}, parseErr(FormatCustom, line, "more than one '|' delimiter", nil)
	}
	info := splitComma(head)
	if len(info) > 2 || info[0] == "" {
		return Entry{}, parseErr(FormatCustom, line, "reaction header must be 'id[, name]'", nil)
	}
	rxn := CustomReaction{ID: info[0], Name: info[0]}
	if len(info) == 2 && info[1] != "" {
		rxn.Name = info[1]
	}

	body = strings.TrimSpace(body)
	var err error
	if _, _, _, isEq := models.SplitEquation(body); isEq {
		rxn.Participants, rxn.Direction, err = equationParticipants(body)
	} else {
		rxn.Participants, err = colonParticipants(body)
		rxn.Direction = models.DirectionLeftToRight
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Format, pe.Fragment = FormatCustom, line
			return Entry{}, pe
		}
		return Entry{}, err
	}
	if len(rxn.Participants) == 0 {
		return Entry{}, parseErr(FormatCustom, line, "reaction without participants", nil)
	}
	return Entry{Kind: EntryCustomReaction, Reaction: rxn, Line: line}, nil
}

// colonParticipants reads "a_c:-1, b_c:2". Negative coefficients are
// consumed.
func colonParticipants(body string) ([]models.Participant, error) {
	var out []models.Participant
	for _, term := range splitComma(body) {
		if term == "" {
			continue
		}
		id, coef, ok := strings.Cut(term, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, parseErr(FormatCustom, term, "participant must be 'metabolite:coefficient'", nil)
		}
		c, err := parseCoefficient(coef, false)
		if err != nil {
			return nil, parseErr(FormatCustom, term, "non-numeric or zero coefficient", err)
		}
		out = append(out, models.Participant{MetaboliteID: id, Coefficient: c})
	}
	return out, nil
}

// equationParticipants reads "2 a_c + b_c <-> c_c".
func equationParticipants(body string) ([]models.Participant, models.Direction, error) {
	left, right, dir, _ := models.SplitEquation(body)
	var out []models.Participant
	for _, side := range []struct {
		text string
		sign float64
	}{{left, -1}, {right, 1}} {
		terms, err := splitTerms(side.text)
		if err != nil {
			return nil, "", err
		}
		for _, t := range terms {
			p, _ := models.DecodeParticipant(t)
			out = append(out, models.Participant{MetaboliteID: p.ID, Coefficient: side.sign * p.Coefficient})
		}
	}
	return out, dir, nil
}

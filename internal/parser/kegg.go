package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/pkg/formula"
)

// DatabaseKEGG is the default database name for flat-file records.
const DatabaseKEGG = "KEGG"

var rnTag = regexp.MustCompile(`\[RN:([^\]]+)\]`)

// flatField is one KEGG field with its first line and continuation lines.
type flatField struct {
	key    string
	values []string
}

// ParseFlatFile parses one or more KEGG flat-file records separated by
// "///" lines. A record missing its terminator is reported as truncated.
func ParseFlatFile(raw []byte, database string) ([]models.Record, error) {
	if database == "" {
		database = DatabaseKEGG
	}
	chunks, err := splitFlatRecords(raw)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, parseErr(FormatFlatFile, "", "no records found", nil)
	}
	out := make([]models.Record, 0, len(chunks))
	for _, chunk := range chunks {
		fields, err := flatFields(chunk)
		if err != nil {
			return nil, err
		}
		rec, err := flatRecord(fields, database, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func splitFlatRecords(raw []byte) ([][]string, error) {
	var (
		records [][]string
		current []string
	)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		if strings.TrimSpace(line) == "///" {
			if len(current) > 0 {
				records = append(records, current)
			}
			current = nil
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		current = append(current, line)
	}
	if err := sc.Err(); err != nil {
		return nil, parseErr(FormatFlatFile, "", "reading records", err)
	}
	if len(current) > 0 {
		return nil, parseErr(FormatFlatFile, strings.Join(current, "\n"), "truncated record: missing ///", nil)
	}
	return records, nil
}

func flatFields(lines []string) ([]flatField, error) {
	var fields []flatField
	for _, line := range lines {
		if line[0] == ' ' || line[0] == '\t' {
			if len(fields) == 0 {
				return nil, parseErr(FormatFlatFile, line, "continuation line before first field", nil)
			}
			last := &fields[len(fields)-1]
			last.values = append(last.values, strings.TrimSpace(line))
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		fields = append(fields, flatField{key: key, values: []string{strings.TrimSpace(value)}})
	}
	return fields, nil
}

func flatRecord(fields []flatField, database string, chunk []string) (models.Record, error) {
	if len(fields) == 0 || fields[0].key != "ENTRY" {
		return models.Record{}, parseErr(FormatFlatFile, strings.Join(chunk, "\n"), "record does not start with ENTRY", nil)
	}
	entry := strings.Fields(fields[0].values[0])
	if len(entry) < 2 {
		return models.Record{}, parseErr(FormatFlatFile, chunk[0], "ENTRY without type", nil)
	}
	kind, ok := entryKind(entry[1:])
	if !ok {
		return models.Record{}, parseErr(FormatFlatFile, chunk[0], "unsupported entry type "+strings.Join(entry[1:], " "), nil)
	}
	rec := models.NewRecord(kind, entry[0], database)

	var (
		reactionLines []string
		orthology     []string
	)
	for _, f := range fields[1:] {
		switch f.key {
		case "NAME":
			for _, n := range f.values {
				rec.Add(models.FieldName, strings.TrimSuffix(n, ";"))
			}
		case "FORMULA":
			rec.Set(models.FieldFormula, formula.Clean(strings.Join(f.values, "")))
		case "DEFINITION":
			rec.Set(models.FieldDefinition, strings.Join(f.values, " "))
		case "EQUATION":
			if kind != models.RecordReaction {
				rec.AddExtra(f.key, f.values...)
				continue
			}
			if err := parseEquation(&rec, strings.Join(f.values, " ")); err != nil {
				return models.Record{}, err
			}
		case "DBLINKS":
			for _, line := range f.values {
				db, ids, found := strings.Cut(line, ":")
				if !found {
					continue
				}
				for _, id := range strings.Fields(ids) {
					rec.Add(models.FieldXRef, strings.TrimSpace(db)+":"+id)
				}
			}
		case "ENZYME":
			for _, line := range f.values {
				rec.Add(models.FieldEnzyme, strings.Fields(line)...)
			}
		case "PATHWAY":
			for _, line := range f.values {
				if id := firstToken(line); id != "" {
					rec.Add(models.FieldPathwayMaps, id)
				}
			}
		case "ORTHOLOGY":
			orthology = append(orthology, f.values...)
			for _, line := range f.values {
				for _, ko := range strings.Split(firstToken(line), ",") {
					if ko != "" {
						rec.Add(models.FieldOrthology, ko)
					}
				}
			}
		case "REACTION":
			if kind == models.RecordPathway {
				reactionLines = append(reactionLines, f.values...)
			} else {
				rec.AddExtra(f.key, f.values...)
			}
		case "COMMENT":
			rec.Add(models.FieldComment, f.values...)
		default:
			rec.AddExtra(f.key, f.values...)
		}
	}

	switch kind {
	case models.RecordReaction:
		if len(rec.Values(models.FieldLeft)) == 0 && len(rec.Values(models.FieldRight)) == 0 {
			return models.Record{}, parseErr(FormatFlatFile, chunk[0], "reaction without EQUATION", nil)
		}
		if rec.Direction() == models.DirectionReversible &&
			strings.Contains(strings.ToLower(strings.Join(rec.Values(models.FieldComment), " ")), "irreversible") {
			rec.Set(models.FieldDirection, string(models.DirectionLeftToRight))
		}
		if kos := rec.Values(models.FieldOrthology); len(kos) > 0 {
			rec.Set(models.FieldGenes, kos...)
			rec.Set(models.FieldGeneRule, strings.Join(kos, " or "))
		}
	case models.RecordPathway:
		moduleGraph(&rec, reactionLines)
		if def := rec.First(models.FieldDefinition); def != "" {
			steps, err := ParseModuleDefinition(def)
			if err != nil {
				return models.Record{}, err
			}
			rec.Steps = pairSteps(steps, orthology, reactionLines)
		}
	}
	return rec, nil
}

func entryKind(types []string) (models.RecordKind, bool) {
	for _, t := range types {
		switch strings.ToLower(t) {
		case "compound":
			return models.RecordCompound, true
		case "reaction":
			return models.RecordReaction, true
		case "module", "pathway":
			return models.RecordPathway, true
		}
	}
	return "", false
}

// parseEquation fills the participant and direction fields from a KEGG
// EQUATION such as "C00073 + 2 C00001 <=> C01180 + C00151".
func parseEquation(rec *models.Record, eq string) error {
	left, right, dir, ok := models.SplitEquation(eq)
	if !ok {
		return parseErr(FormatFlatFile, eq, "equation without arrow", nil)
	}
	for _, side := range []struct {
		key  string
		text string
	}{{models.FieldLeft, left}, {models.FieldRight, right}} {
		terms, err := splitTerms(side.text)
		if err != nil {
			return err
		}
		rec.Set(side.key, terms...)
	}
	rec.Set(models.FieldDirection, string(dir))
	return nil
}

// splitTerms turns "C00073 + 2 C00001" into encoded participants.
func splitTerms(side string) ([]string, error) {
	var out []string
	for _, term := range strings.Split(side, " + ") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		parts := strings.Fields(term)
		switch len(parts) {
		case 1:
			out = append(out, models.EncodeParticipant(1, parts[0]))
		case 2:
			c, err := parseCoefficient(parts[0], true)
			if err != nil {
				return nil, parseErr(FormatFlatFile, term, "non-numeric coefficient", err)
			}
			out = append(out, models.EncodeParticipant(c, parts[1]))
		default:
			return nil, parseErr(FormatFlatFile, term, "malformed equation term", nil)
		}
	}
	return out, nil
}

// moduleGraph reads module REACTION lines. Each line lists alternative
// reactions separated by commas; every reaction of line j precedes every
// reaction of line j+1.
func moduleGraph(rec *models.Record, lines []string) {
	var layers [][]string
	for _, line := range lines {
		tok := firstToken(line)
		if tok == "" {
			continue
		}
		var layer []string
		for _, id := range strings.Split(tok, ",") {
			if id = strings.TrimSpace(id); id != "" {
				layer = append(layer, id)
				rec.Add(models.FieldMembers, id)
			}
		}
		layers = append(layers, layer)
	}
	for j := 0; j+1 < len(layers); j++ {
		for _, from := range layers[j] {
			for _, to := range layers[j+1] {
				rec.Edges = append(rec.Edges, models.Edge{From: from, To: to})
			}
		}
	}
}

// pairSteps links module steps with reactions. ORTHOLOGY lines annotated with
// [RN:...] win; otherwise REACTION lines are paired by position when both
// lists have the same length.
func pairSteps(steps []models.ModuleStep, orthology, reactionLines []string) []models.ModuleStep {
	koReaction := make(map[string]string)
	for _, line := range orthology {
		m := rnTag.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rn := strings.Fields(m[1])
		if len(rn) == 0 {
			continue
		}
		for _, ko := range strings.Split(firstToken(line), ",") {
			if _, seen := koReaction[ko]; !seen {
				koReaction[ko] = rn[0]
			}
		}
	}
	for i := range steps {
		for _, ko := range steps[i].Orthologs() {
			if rn, ok := koReaction[ko]; ok {
				steps[i].Reaction = rn
				break
			}
		}
	}
	var byLine []string
	for _, line := range reactionLines {
		if tok := firstToken(line); tok != "" {
			byLine = append(byLine, strings.Split(tok, ",")[0])
		}
	}
	if len(byLine) == len(steps) {
		for i := range steps {
			if steps[i].Reaction == "" {
				steps[i].Reaction = byLine[i]
			}
		}
	}
	return steps
}

func firstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// ParseKEGGGenes reads a KEGG "link/genes" listing ("ko:K00001\thsa:124")
// and returns the genes of one organism code.
func ParseKEGGGenes(raw []byte, genome string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		org, gene, ok := strings.Cut(fields[1], ":")
		if !ok || org != genome || seen[gene] {
			continue
		}
		seen[gene] = true
		out = append(out, gene)
	}
	return out
}

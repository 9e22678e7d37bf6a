package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// DatabaseBiGG is the default database for JSON records.
const DatabaseBiGG = "BIGG"

var biggArrows = strings.NewReplacer(
	"&#8652;", "<->",
	"&harr;", "<->",
	"&rarr;", "-->",
	"&larr;", "<--",
	"↔", "<->",
	"⇌", "<->",
	"→", "-->",
	"←", "<--",
)

// ParseJSON parses BiGG API documents. A top-level array yields one record
// per element.
func ParseJSON(raw []byte, database string) ([]models.Record, error) {
	if database == "" {
		database = DatabaseBiGG
	}
	if !gjson.ValidBytes(raw) {
		return nil, parseErr(FormatJSON, string(firstLine(raw)), "invalid JSON", nil)
	}
	doc := gjson.ParseBytes(raw)
	var docs []gjson.Result
	if doc.IsArray() {
		docs = doc.Array()
	} else {
		docs = []gjson.Result{doc}
	}
	out := make([]models.Record, 0, len(docs))
	for _, d := range docs {
		rec, err := biggRecord(d, database)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func biggRecord(d gjson.Result, database string) (models.Record, error) {
	id := d.Get("bigg_id").String()
	if id == "" {
		return models.Record{}, parseErr(FormatJSON, truncateRaw(d.Raw), "document without bigg_id", nil)
	}
	switch {
	case d.Get("reaction_string").Exists() || d.Get("metabolites").IsArray():
		return biggReaction(d, id, database)
	case d.Get("formulae").Exists() || d.Get("formula").Exists() || d.Get("charges").Exists():
		return biggMetabolite(d, id, database), nil
	default:
		return models.Record{}, parseErr(FormatJSON, truncateRaw(d.Raw), "neither reaction nor metabolite", nil)
	}
}

func biggXRefs(rec *models.Record, d gjson.Result) {
	d.Get("database_links").ForEach(func(db, links gjson.Result) bool {
		links.ForEach(func(_, link gjson.Result) bool {
			if id := link.Get("id").String(); id != "" {
				rec.Add(models.FieldXRef, db.String()+":"+id)
			}
			return true
		})
		return true
	})
}

func biggMetabolite(d gjson.Result, id, database string) models.Record {
	rec := models.NewRecord(models.RecordCompound, id, database)
	if name := d.Get("name").String(); name != "" {
		rec.Set(models.FieldName, name)
	}
	f := d.Get("formulae.0").String()
	if f == "" {
		f = d.Get("formula").String()
	}
	if f != "" {
		rec.Set(models.FieldFormula, f)
	}
	charge := d.Get("charges.0")
	if !charge.Exists() {
		charge = d.Get("charge")
	}
	if charge.Exists() {
		rec.Set(models.FieldCharge, strconv.Itoa(int(math.Round(charge.Float()))))
	}
	biggXRefs(&rec, d)
	return rec
}

func biggReaction(d gjson.Result, id, database string) (models.Record, error) {
	rec := models.NewRecord(models.RecordReaction, id, database)
	name := d.Get("name").String()
	if name == "" {
		name = d.Get("exported_reaction_id").String()
	}
	if name != "" {
		rec.Set(models.FieldName, name)
	}

	var bad string
	d.Get("metabolites").ForEach(func(_, m gjson.Result) bool {
		met := m.Get("bigg_id").String()
		coef := m.Get("stoichiometry").Float()
		switch {
		case met == "" || !models.ValidCoefficient(coef):
			bad = m.Raw
			return false
		case coef < 0:
			rec.Add(models.FieldLeft, models.EncodeParticipant(-coef, met))
		default:
			rec.Add(models.FieldRight, models.EncodeParticipant(coef, met))
		}
		return true
	})
	if bad != "" {
		return models.Record{}, parseErr(FormatJSON, bad, "invalid stoichiometry", nil)
	}

	result := d.Get("results.0")
	dir := models.DirectionUnknown
	if rs := d.Get("reaction_string").String(); rs != "" {
		if _, _, arrowDir, ok := models.SplitEquation(biggArrows.Replace(rs)); ok {
			dir = arrowDir
		}
		if len(rec.Values(models.FieldLeft)) == 0 && len(rec.Values(models.FieldRight)) == 0 {
			if err := biggEquation(&rec, biggArrows.Replace(rs)); err != nil {
				return models.Record{}, err
			}
		}
	}
	if dir == models.DirectionUnknown && result.Exists() {
		lb, ub := result.Get("lower_bound").Float(), result.Get("upper_bound").Float()
		switch {
		case lb < 0 && ub > 0:
			dir = models.DirectionReversible
		case lb >= 0 && ub > 0:
			dir = models.DirectionLeftToRight
		case lb < 0 && ub <= 0:
			dir = models.DirectionRightToLeft
		}
	}
	rec.Set(models.FieldDirection, string(dir))
	if len(rec.Values(models.FieldLeft)) == 0 && len(rec.Values(models.FieldRight)) == 0 {
		return models.Record{}, parseErr(FormatJSON, id, "reaction without participants", nil)
	}

	genes := d.Get("genes")
	rule := d.Get("gene_reaction_rule").String()
	if result.Exists() {
		if !genes.Exists() {
			genes = result.Get("genes")
		}
		if rule == "" {
			rule = result.Get("gene_reaction_rule").String()
		}
	}
	genes.ForEach(func(_, g gjson.Result) bool {
		if gid := g.Get("bigg_id").String(); gid != "" {
			rec.Add(models.FieldGenes, gid)
		}
		return true
	})
	if rule != "" {
		rec.Set(models.FieldGeneRule, rule)
	}
	biggXRefs(&rec, d)
	return rec, nil
}

// biggEquation parses participants out of a reaction string when the
// metabolites array is missing. Compartment suffixes ("_c") are stripped.
func biggEquation(rec *models.Record, eq string) error {
	left, right, _, ok := models.SplitEquation(eq)
	if !ok {
		return parseErr(FormatJSON, eq, "reaction string without arrow", nil)
	}
	for _, side := range []struct {
		key, text string
	}{{models.FieldLeft, left}, {models.FieldRight, right}} {
		terms, err := splitTerms(side.text)
		if err != nil {
			return err
		}
		for _, t := range terms {
			p, _ := models.DecodeParticipant(t)
			if comp := models.CompartmentOf(p.ID); comp != "" {
				p.ID = strings.TrimSuffix(p.ID, "_"+comp)
			}
			rec.Add(side.key, models.EncodeParticipant(p.Coefficient, p.ID))
		}
	}
	return nil
}

func truncateRaw(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}

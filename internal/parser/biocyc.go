package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/pkg/formula"
	"github.com/ajitpratap0/pathcurate/pkg/xmlutil"
)

// DatabaseMetaCyc is the default database for XML records.
const DatabaseMetaCyc = "META"

var biocycDirections = map[string]models.Direction{
	"REVERSIBLE":                 models.DirectionReversible,
	"LEFT-TO-RIGHT":              models.DirectionLeftToRight,
	"PHYSIOL-LEFT-TO-RIGHT":      models.DirectionLeftToRight,
	"IRREVERSIBLE-LEFT-TO-RIGHT": models.DirectionLeftToRight,
	"RIGHT-TO-LEFT":              models.DirectionRightToLeft,
	"PHYSIOL-RIGHT-TO-LEFT":      models.DirectionRightToLeft,
	"IRREVERSIBLE-RIGHT-TO-LEFT": models.DirectionRightToLeft,
}

var compoundTags = map[string]bool{"Compound": true, "Protein": true, "RNA": true}

// frameCache holds every element declaring or pointing at a frame, keyed by
// tag and frame id. Declarations of the same frame are merged: a full
// declaration replaces a stub, partial ones are combined.
type frameCache struct {
	entries map[string]*xmlutil.Node
	order   []string
	ids     map[string]string // "ORG:FRAME" -> frame id
}

func newFrameCache() *frameCache {
	return &frameCache{
		entries: make(map[string]*xmlutil.Node),
		ids:     make(map[string]string),
	}
}

func isFull(n *xmlutil.Node) bool {
	return n.Attr("detail") == "full"
}

func (c *frameCache) add(n *xmlutil.Node) {
	frame := n.Attr("frameid")
	if frame == "" {
		return
	}
	if id := n.Attr("ID"); id != "" {
		c.ids[id] = frame
	}
	if res := resourceID(n.Attr("resource")); res != "" {
		c.ids[res] = frame
	}
	key := n.Tag + "|" + frame
	prev, ok := c.entries[key]
	if !ok {
		c.entries[key] = n
		c.order = append(c.order, key)
		return
	}
	switch {
	case isFull(n) && !isFull(prev):
		mergeInto(n, prev)
		c.entries[key] = n
	case isFull(prev) && !isFull(n):
		mergeAttrs(prev, n)
	default:
		mergeInto(prev, n)
	}
}

// mergeInto fills dst with attributes and child tags it does not have yet.
func mergeInto(dst, src *xmlutil.Node) {
	mergeAttrs(dst, src)
	have := make(map[string]bool, len(dst.Children))
	for _, ch := range dst.Children {
		have[ch.Tag] = true
	}
	for _, ch := range src.Children {
		if !have[ch.Tag] {
			dst.Children = append(dst.Children, ch)
		}
	}
}

func mergeAttrs(dst, src *xmlutil.Node) {
	for k, v := range src.Attrs {
		if _, ok := dst.Attrs[k]; !ok {
			dst.Attrs[k] = v
		}
	}
}

// resolve returns the frame id an element declares or points at. Pointers
// ("#ORG:ID" or "getxml?ORG:ID") are resolved through the cache first so
// that forward references work.
func (c *frameCache) resolve(n *xmlutil.Node) string {
	if n == nil {
		return ""
	}
	if f := n.Attr("frameid"); f != "" {
		return f
	}
	res := resourceID(n.Attr("resource"))
	if res == "" {
		return ""
	}
	if f, ok := c.ids[res]; ok {
		return f
	}
	if _, id, ok := strings.Cut(res, ":"); ok {
		return id
	}
	return res
}

// resolveAll resolves every child of n.
func (c *frameCache) resolveAll(n *xmlutil.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, ch := range n.Children {
		if id := c.resolve(ch); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func resourceID(res string) string {
	res = strings.TrimSpace(res)
	if res == "" {
		return ""
	}
	if i := strings.Index(res, "getxml?"); i >= 0 {
		res = res[i+len("getxml?"):]
	}
	res = strings.TrimPrefix(res, "#")
	if i := strings.Index(res, "&"); i >= 0 {
		res = res[:i]
	}
	return res
}

// ParseXML parses a BioCyc-family XML document. Every fully declared
// compound, reaction and pathway yields one record, in document order.
func ParseXML(raw []byte, database string) ([]models.Record, error) {
	root, err := xmlutil.DecodeBytes(raw)
	if err != nil {
		return nil, parseErr(FormatXML, string(firstLine(raw)), "malformed XML", err)
	}

	// Pass 1: collect declarations so that pass 2 can follow pointers in
	// either direction.
	cache := newFrameCache()
	root.Walk(func(n *xmlutil.Node) {
		if n != root && n.Attr("class") != "true" {
			cache.add(n)
		}
	})
	// Elements that only carry a resource pointer still register their id.
	root.Walk(func(n *xmlutil.Node) {
		if n.Attr("frameid") == "" {
			if res := resourceID(n.Attr("resource")); res != "" {
				if _, ok := cache.ids[res]; !ok {
					if _, id, found := strings.Cut(res, ":"); found {
						cache.ids[res] = id
					}
				}
			}
		}
	})

	// Pass 2: build records.
	var records []models.Record
	for _, key := range cache.order {
		n := cache.entries[key]
		if !isFull(n) {
			continue
		}
		rec, ok, err := xmlRecord(cache, n, database)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		// Low-detail documents: fall back to the root's direct children.
		for _, n := range root.Children {
			if n.Attr("frameid") == "" {
				continue
			}
			rec, ok, err := xmlRecord(cache, n, database)
			if err != nil {
				return nil, err
			}
			if ok {
				records = append(records, rec)
			}
		}
	}
	if len(records) == 0 {
		return nil, parseErr(FormatXML, string(firstLine(raw)), "no compound, reaction or pathway found", nil)
	}
	return records, nil
}

func xmlRecord(cache *frameCache, n *xmlutil.Node, database string) (models.Record, bool, error) {
	db := database
	if db == "" {
		db = n.Attr("orgid")
	}
	if db == "" {
		db = DatabaseMetaCyc
	}
	frame := n.Attr("frameid")
	switch {
	case compoundTags[n.Tag]:
		return xmlCompound(n, frame, db), true, nil
	case n.Tag == "Reaction":
		rec, err := xmlReaction(cache, n, frame, db)
		return rec, err == nil, err
	case n.Tag == "Pathway":
		return xmlPathway(cache, n, frame, db), true, nil
	default:
		return models.Record{}, false, nil
	}
}

func xmlXRefs(rec *models.Record, n *xmlutil.Node) {
	for _, link := range n.ChildrenByTag("dblink") {
		db := link.ChildText("dblink-db")
		oid := link.ChildText("dblink-oid")
		if db != "" && oid != "" {
			rec.Add(models.FieldXRef, db+":"+oid)
		}
	}
}

func xmlCompound(n *xmlutil.Node, frame, db string) models.Record {
	rec := models.NewRecord(models.RecordCompound, frame, db)
	mol := n.Path("cml/molecule")
	name := mol.Attr("title")
	if name == "" {
		name = n.ChildText("common-name")
	}
	if name != "" {
		rec.Set(models.FieldName, name)
	}
	if f := mol.Child("formula").Attr("concise"); f != "" {
		rec.Set(models.FieldFormula, formula.Clean(f))
	}
	if ch := mol.Attr("formalCharge"); ch != "" {
		if v, err := strconv.ParseFloat(ch, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			rec.Set(models.FieldCharge, strconv.Itoa(int(math.Round(v))))
		}
	}
	if n.Tag != "Compound" {
		rec.AddExtra("type", n.Tag)
	}
	xmlXRefs(&rec, n)
	keepExtra(&rec, n, "cml", "common-name", "dblink")
	return rec
}

func xmlReaction(cache *frameCache, n *xmlutil.Node, frame, db string) (models.Record, error) {
	rec := models.NewRecord(models.RecordReaction, frame, db)

	name := ""
	if er := n.Child("enzymatic-reaction"); er != nil && len(er.Children) > 0 {
		name = er.Children[0].ChildText("common-name")
	}
	if name == "" {
		name = n.ChildText("common-name")
	}
	if name != "" {
		rec.Set(models.FieldName, name)
	}

	for _, side := range []struct {
		tag, key string
	}{{"left", models.FieldLeft}, {"right", models.FieldRight}} {
		for _, el := range n.ChildrenByTag(side.tag) {
			coef := 1.0
			if txt := el.ChildText("coefficient"); txt != "" {
				v, err := parseCoefficient(txt, true)
				if err != nil {
					return models.Record{}, parseErr(FormatXML, txt, "non-numeric coefficient in "+frame, err)
				}
				coef = v
			}
			id := ""
			for _, ch := range el.Children {
				if ch.Tag == "coefficient" || ch.Tag == "compartment" {
					continue
				}
				if id = cache.resolve(ch); id != "" {
					break
				}
			}
			if id == "" {
				return models.Record{}, parseErr(FormatXML, frame, "participant without frame id", nil)
			}
			rec.Add(side.key, models.EncodeParticipant(coef, id))
		}
	}
	if len(rec.Values(models.FieldLeft)) == 0 && len(rec.Values(models.FieldRight)) == 0 {
		return models.Record{}, parseErr(FormatXML, frame, "reaction without participants", nil)
	}

	dir := models.DirectionUnknown
	if txt := strings.TrimSpace(n.ChildText("reaction-direction")); txt != "" {
		if d, ok := biocycDirections[txt]; ok {
			dir = d
		}
	}
	rec.Set(models.FieldDirection, string(dir))

	for _, ec := range n.ChildrenByTag("ec-number") {
		if ec.Text != "" {
			rec.Add(models.FieldEnzyme, strings.TrimPrefix(ec.Text, "EC-"))
		}
	}
	xmlXRefs(&rec, n)
	keepExtra(&rec, n, "enzymatic-reaction", "common-name", "left", "right", "reaction-direction", "ec-number", "dblink")
	return rec, nil
}

func xmlPathway(cache *frameCache, n *xmlutil.Node, frame, db string) models.Record {
	rec := models.NewRecord(models.RecordPathway, frame, db)
	if name := n.ChildText("common-name"); name != "" {
		rec.Set(models.FieldName, name)
	}

	seenSub := make(map[string]bool)
	addSub := func(id string) {
		if id != "" && !seenSub[id] {
			seenSub[id] = true
			rec.Add(models.FieldSubPathways, id)
		}
	}
	seenMember := make(map[string]bool)
	addMember := func(id string) {
		if id != "" && !seenMember[id] {
			seenMember[id] = true
			rec.Add(models.FieldMembers, id)
		}
	}

	if list := n.Child("reaction-list"); list != nil {
		for _, ch := range list.Children {
			switch ch.Tag {
			case "Reaction":
				addMember(cache.resolve(ch))
			case "Pathway":
				addSub(cache.resolve(ch))
			}
		}
	}
	if subs := n.Child("sub-pathways"); subs != nil {
		for _, ch := range subs.ChildrenByTag("Pathway") {
			addSub(cache.resolve(ch))
		}
	}

	for _, ord := range n.ChildrenByTag("reaction-ordering") {
		succ := cache.resolve(ord.Child("Reaction"))
		if succ == "" {
			continue
		}
		for _, pred := range ord.Child("predecessor-reactions").ChildrenByTag("Reaction") {
			if p := cache.resolve(pred); p != "" {
				rec.Edges = append(rec.Edges, models.Edge{From: p, To: succ})
			}
		}
	}

	for _, lay := range n.ChildrenByTag("reaction-layout") {
		id := cache.resolve(lay.Child("Reaction"))
		if id == "" {
			continue
		}
		if rec.Layout == nil {
			rec.Layout = make(map[string]models.ReactionLayout)
		}
		l := models.ReactionLayout{Direction: models.DirectionReversible}
		switch strings.TrimSpace(lay.ChildText("direction")) {
		case "L2R":
			l.Direction = models.DirectionLeftToRight
		case "R2L":
			l.Direction = models.DirectionRightToLeft
		}
		l.LeftPrimaries = cache.resolveAll(lay.Child("left-primaries"))
		l.RightPrimaries = cache.resolveAll(lay.Child("right-primaries"))
		rec.Layout[id] = l
		// A single-reaction pathway only names its reaction in the layout.
		if len(rec.Values(models.FieldMembers)) == 0 && len(n.ChildrenByTag("reaction-layout")) == 1 {
			addMember(id)
		}
	}

	xmlXRefs(&rec, n)
	keepExtra(&rec, n, "common-name", "reaction-list", "sub-pathways", "reaction-ordering", "reaction-layout", "dblink")
	return rec
}

// keepExtra copies the text of children not consumed by the parser.
func keepExtra(rec *models.Record, n *xmlutil.Node, consumed ...string) {
	skip := make(map[string]bool, len(consumed))
	for _, c := range consumed {
		skip[c] = true
	}
	for _, ch := range n.Children {
		if skip[ch.Tag] || ch.Text == "" {
			continue
		}
		rec.AddExtra(ch.Tag, ch.Text)
	}
}

// ParseBioCycGenes reads a genes-of-reaction document and returns the gene
// frame ids it lists.
func ParseBioCycGenes(raw []byte) ([]string, error) {
	root, err := xmlutil.DecodeBytes(raw)
	if err != nil {
		return nil, parseErr(FormatXML, string(firstLine(raw)), "malformed XML", err)
	}
	var genes []string
	seen := make(map[string]bool)
	root.Walk(func(n *xmlutil.Node) {
		if n.Tag != "Gene" {
			return
		}
		if f := n.Attr("frameid"); f != "" && !seen[f] {
			seen[f] = true
			genes = append(genes, f)
		}
	})
	return genes, nil
}

// Package summary reports what changed in a model: snapshots of its
// identifiers, the difference between two snapshots, and the outcome of a
// merge batch.
package summary

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ajitpratap0/pathcurate/internal/classifier"
	"github.com/ajitpratap0/pathcurate/internal/curation"
	"github.com/ajitpratap0/pathcurate/internal/merge"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// DataModel is a snapshot of the identifiers in a model. Reactions excludes
// exchanges, sinks and demands, which are listed separately.
type DataModel struct {
	Reactions   []string `json:"reactions"`
	Metabolites []string `json:"metabolites"`
	Exchanges   []string `json:"exchanges"`
	Demands     []string `json:"demands"`
	Sinks       []string `json:"sinks"`
	Genes       []string `json:"genes"`
	Pathways    []string `json:"pathways"`
}

// FromModel snapshots m. A nil classifier uses the heuristic one.
func FromModel(m *models.Model, c classifier.Classifier) *DataModel {
	if c == nil {
		c = classifier.NewClassifier(nil)
	}
	d := &DataModel{}
	genes := make(map[string]bool)
	for _, r := range m.Reactions() {
		switch c.Classify(r, m) {
		case classifier.KindExchange:
			d.Exchanges = append(d.Exchanges, r.ID)
		case classifier.KindSink:
			d.Sinks = append(d.Sinks, r.ID)
		case classifier.KindDemand:
			d.Demands = append(d.Demands, r.ID)
		default:
			d.Reactions = append(d.Reactions, r.ID)
		}
		for _, g := range r.Genes {
			if !genes[g] {
				genes[g] = true
				d.Genes = append(d.Genes, g)
			}
		}
	}
	for _, met := range m.Metabolites() {
		d.Metabolites = append(d.Metabolites, met.ID)
	}
	for _, p := range m.Pathways() {
		d.Pathways = append(d.Pathways, p.ID)
	}
	return d
}

func (d *DataModel) lists() []*[]string {
	return []*[]string{&d.Reactions, &d.Metabolites, &d.Exchanges, &d.Demands, &d.Sinks, &d.Genes, &d.Pathways}
}

// Sub returns the identifiers of d that other lacks.
func (d *DataModel) Sub(other *DataModel) *DataModel {
	out := &DataModel{}
	mine, theirs, dst := d.lists(), other.lists(), out.lists()
	for i := range mine {
		have := make(map[string]bool, len(*theirs[i]))
		for _, id := range *theirs[i] {
			have[id] = true
		}
		for _, id := range *mine[i] {
			if !have[id] {
				*dst[i] = append(*dst[i], id)
			}
		}
	}
	return out
}

// Diff returns every identifier present in only one of the snapshots:
// removals (in d only) first, then additions.
func (d *DataModel) Diff(other *DataModel) *DataModel {
	left, right := d.Sub(other), other.Sub(d)
	out := &DataModel{}
	l, r, dst := left.lists(), right.lists(), out.lists()
	for i := range dst {
		*dst[i] = append(append([]string(nil), *l[i]...), *r[i]...)
	}
	return out
}

// Changes counts the identifiers in the snapshot.
func (d *DataModel) Changes() int {
	n := 0
	for _, l := range d.lists() {
		n += len(*l)
	}
	return n
}

var sections = []string{"Reactions", "Metabolites", "Exchange", "Demand", "Sinks", "Genes", "Pathways"}

func (d *DataModel) String() string {
	var b strings.Builder
	for i, l := range d.lists() {
		fmt.Fprintf(&b, "%s:\n[%s]\n", sections[i], strings.Join(*l, ", "))
	}
	return b.String()
}

// Format is a summary file format.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatTXT, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown summary format %q: use .txt, .csv or .json", filepath.Ext(path))
	}
}

// Write renders diff in the given format. current describes the model after
// the changes; m supplies its identifier and name.
func Write(w io.Writer, format Format, m *models.Model, current, diff *DataModel) error {
	switch format {
	case FormatTXT:
		return writeTXT(w, m, current, diff)
	case FormatCSV:
		return writeCSV(w, m, current, diff)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ModelID   string     `json:"model_id"`
			ModelName string     `json:"model_name"`
			Model     *DataModel `json:"model"`
			Changes   *DataModel `json:"changes"`
		}{m.ID, m.Name, current, diff})
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}

func writeTXT(w io.Writer, m *models.Model, current, diff *DataModel) error {
	_, err := fmt.Fprintf(w, "Summary:\nModel identifier: %s\nModel name:\n%s\n%sChanges:\n%s",
		m.ID, m.Name, current, diff)
	return err
}

func writeCSV(w io.Writer, m *models.Model, current, diff *DataModel) error {
	header := []string{"Model identifier", "Model name"}
	columns := [][]string{{m.ID}, {m.Name}}
	for i, l := range current.lists() {
		header = append(header, sections[i])
		columns = append(columns, *l)
	}
	for i, l := range diff.lists() {
		header = append(header, "Changed "+strings.ToLower(sections[i]))
		columns = append(columns, *l)
	}
	rows := 0
	for _, c := range columns {
		if len(c) > rows {
			rows = len(c)
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		row := make([]string, len(columns))
		for j, c := range columns {
			if i < len(c) {
				row[j] = c[i]
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Console prints the short change counts shown after every operation.
func Console(w io.Writer, diff *DataModel) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
	fmt.Fprintln(tw, "Changes:")
	for i, l := range diff.lists() {
		fmt.Fprintf(tw, "%s\t%d\n", sections[i], len(*l))
	}
	fmt.Fprintln(tw, "(Includes additions & deletions)")
	return tw.Flush()
}

// Merge prints the outcome of a merge batch. Imbalance warnings are only
// listed when showImbalance is set; they are always counted.
func Merge(w io.Writer, s *merge.Summary, showImbalance bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
	fmt.Fprintf(tw, "Batch:\t%s\n", s.BatchID)
	if s.Pathway != "" {
		fmt.Fprintf(tw, "Pathway:\t%s\n", s.Pathway)
	}
	counts := []struct {
		label string
		ids   []string
	}{
		{"Added reactions", s.AddedReactions},
		{"Added metabolites", s.AddedMetabolites},
		{"Skipped reactions", s.SkippedReactions},
		{"Skipped metabolites", s.SkippedMetabolites},
		{"Added sinks", s.AddedSinks},
		{"Removed sinks", s.RemovedSinks},
	}
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.label, len(c.ids), strings.Join(c.ids, ", "))
	}
	fmt.Fprintf(tw, "Warnings\t%d\n", len(s.Warnings))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range s.Warnings {
		if !showImbalance && warn.Criterion == string(curation.CriterionImbalance) {
			continue
		}
		label := warn.Kind
		if warn.Criterion != "" {
			label += "/" + warn.Criterion
		}
		if _, err := fmt.Fprintf(w, "  [%s] %s\n", label, warn.Message); err != nil {
			return err
		}
	}
	return nil
}

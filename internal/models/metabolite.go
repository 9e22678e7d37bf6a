package models

import "strings"

// UnknownFormula is the placeholder some sources use for a missing formula.
const UnknownFormula = "X"

// Metabolite is a chemical species located in one compartment.
type Metabolite struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Formula     string `json:"formula,omitempty" yaml:"formula,omitempty"`
	Charge      int    `json:"charge" yaml:"charge"`
	Compartment string `json:"compartment" yaml:"compartment"`
	XRefs       XRefs  `json:"xrefs,omitempty" yaml:"xrefs,omitempty"`
}

// HasFormula reports whether the formula is known.
func (m *Metabolite) HasFormula() bool {
	f := strings.TrimSpace(m.Formula)
	return f != "" && f != UnknownFormula
}

// Clone returns a deep copy of the metabolite.
func (m *Metabolite) Clone() *Metabolite {
	c := *m
	c.XRefs = m.XRefs.Clone()
	return &c
}

// CompartmentOf extracts the compartment suffix from a canonical identifier
// such as "ACET_c". It returns "" when the identifier carries no suffix.
func CompartmentOf(id string) string {
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return ""
	}
	suffix := id[i+1:]
	if len(suffix) > 2 {
		return ""
	}
	return suffix
}

// Package formula parses chemical formulas and checks element balance.
package formula

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Composition maps an element symbol to its atom count.
type Composition map[string]float64

// Parse reads a Hill-style formula such as "C6H12O6" or "C2H3O2".
// Parentheses with multipliers are expanded and polymer markers ("n") are
// dropped, so "(C6H10O5)n" parses as C6H10O5.
func Parse(f string) (Composition, error) {
	f = strings.TrimSpace(f)
	if f == "" {
		return Composition{}, nil
	}
	p := &parser{src: f}
	comp, err := p.group()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("formula %q: unexpected %q at %d", f, p.src[p.pos], p.pos)
	}
	return comp, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) group() (Composition, error) {
	comp := Composition{}
	for p.pos < len(p.src) {
		ch := rune(p.src[p.pos])
		switch {
		case ch == '(' || ch == '[':
			p.pos++
			inner, err := p.group()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || (p.src[p.pos] != ')' && p.src[p.pos] != ']') {
				return nil, fmt.Errorf("formula %q: unbalanced parenthesis", p.src)
			}
			p.pos++
			mult := p.count()
			for el, n := range inner {
				comp[el] += n * mult
			}
		case ch == ')' || ch == ']':
			return comp, nil
		case ch == 'n' || ch == '.' || ch == '*' || ch == ' ':
			p.pos++
		case unicode.IsUpper(ch):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(rune(p.src[p.pos])) {
				p.pos++
			}
			el := p.src[start:p.pos]
			comp[el] += p.count()
		default:
			return nil, fmt.Errorf("formula %q: unexpected %q at %d", p.src, ch, p.pos)
		}
	}
	return comp, nil
}

func (p *parser) count() float64 {
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 1
	}
	n, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 1
	}
	return n
}

// Clean normalizes source spellings: spaces are removed ("C 2 H 3 O 2"
// becomes "C2H3O2") and polymer notation is flattened.
func Clean(f string) string {
	f = strings.Join(strings.Fields(f), "")
	f = strings.ReplaceAll(f, ")n", ")")
	if strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")") && strings.Count(f, "(") == 1 {
		f = f[1 : len(f)-1]
	}
	return f
}

// Scale returns c multiplied by k.
func (c Composition) Scale(k float64) Composition {
	out := make(Composition, len(c))
	for el, n := range c {
		out[el] = n * k
	}
	return out
}

// Add accumulates other into c.
func (c Composition) Add(other Composition) {
	for el, n := range other {
		c[el] += n
	}
}

// Nonzero returns the elements whose count is not zero within tolerance.
func (c Composition) Nonzero() Composition {
	out := Composition{}
	for el, n := range c {
		if math.Abs(n) > 1e-9 {
			out[el] = n
		}
	}
	return out
}

// String renders the composition in Hill order (C, H, then alphabetical).
func (c Composition) String() string {
	els := make([]string, 0, len(c))
	for el := range c {
		els = append(els, el)
	}
	sort.Slice(els, func(i, j int) bool {
		return hillRank(els[i]) < hillRank(els[j]) ||
			(hillRank(els[i]) == hillRank(els[j]) && els[i] < els[j])
	})
	var b strings.Builder
	for _, el := range els {
		b.WriteString(el)
		if n := c[el]; n != 1 {
			b.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
		}
	}
	return b.String()
}

func hillRank(el string) int {
	switch el {
	case "C":
		return 0
	case "H":
		return 1
	default:
		return 2
	}
}

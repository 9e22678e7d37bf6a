// Package parser turns raw database payloads into database-independent
// records. Flat-file (KEGG), XML tree (BioCyc) and JSON (BiGG) sources are
// supported, as well as the line syntax used for custom entries.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/pathcurate/internal/metrics"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Format identifies a payload encoding.
type Format string

const (
	FormatFlatFile Format = "flatfile"
	FormatXML      Format = "xml"
	FormatJSON     Format = "json"
)

// maxFragment is the number of runes of the offending input quoted in a
// ParseError message.
const maxFragment = 80

// ParseError reports a malformed or truncated record. It aborts the batch
// that contains it.
type ParseError struct {
	Format   Format
	Fragment string
	Msg      string
	Err      error
}

func (e *ParseError) Error() string {
	frag := e.Fragment
	if utf8.RuneCountInString(frag) > maxFragment {
		frag = string([]rune(frag)[:maxFragment]) + "..."
	}
	msg := fmt.Sprintf("parse %s: %s", e.Format, e.Msg)
	if frag != "" {
		msg += fmt.Sprintf(" (near %q)", frag)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(format Format, fragment, msg string, err error) *ParseError {
	metrics.Inc(metrics.ParseErrors)
	return &ParseError{Format: format, Fragment: fragment, Msg: msg, Err: err}
}

// FormatForExt maps a cache file extension to a payload format.
func FormatForExt(ext string) (Format, bool) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "txt", "kegg", "flat":
		return FormatFlatFile, true
	case "xml":
		return FormatXML, true
	case "json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// DetectFormat sniffs the payload.
func DetectFormat(raw []byte) (Format, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return "", parseErr("", "", "empty payload", nil)
	case trimmed[0] == '<':
		return FormatXML, nil
	case trimmed[0] == '{' || trimmed[0] == '[':
		return FormatJSON, nil
	case bytes.HasPrefix(trimmed, []byte("ENTRY")):
		return FormatFlatFile, nil
	default:
		return "", parseErr("", string(firstLine(trimmed)), "unrecognized payload", nil)
	}
}

// Parse decodes raw into records. database names the source the payload came
// from and is stamped on every record; pass "" to let the parser pick its
// default (KEGG, META or BIGG).
func Parse(raw []byte, format Format, database string) ([]models.Record, error) {
	if format == "" {
		f, err := DetectFormat(raw)
		if err != nil {
			return nil, err
		}
		format = f
	}
	switch format {
	case FormatFlatFile:
		return ParseFlatFile(raw, database)
	case FormatXML:
		return ParseXML(raw, database)
	case FormatJSON:
		return ParseJSON(raw, database)
	default:
		return nil, parseErr(format, "", "unsupported format", nil)
	}
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

// parseCoefficient reads a stoichiometric coefficient. NaN, infinities and
// zero are rejected; positive restricts the value to magnitudes.
func parseCoefficient(s string, positive bool) (float64, error) {
	c, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !models.ValidCoefficient(c) || (positive && c < 0) {
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidCoefficient, s)
	}
	return c, nil
}

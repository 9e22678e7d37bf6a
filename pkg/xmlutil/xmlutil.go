// Package xmlutil reads database XML into a generic element tree and escapes
// text that is embedded in XML-delimited prompts.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML so that record
// names and merge messages cannot close the tags they are placed in.
// Invalid UTF-8 is replaced with U+FFFD before escaping.
func Escape(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	var buf strings.Builder
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

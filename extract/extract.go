// Package extract recovers the completed form instance XML from the
// player's interleaved stdout.
//
// The player mixes menu text, diagnostics, and prompts with the one
// genuine XML block it prints on form completion, and its output format
// drifts between versions, so exact parsing is unsafe. Extraction is a
// two-pass heuristic, first match wins; callers log which pass matched
// since the fallback is the most likely source of future false
// negatives.
package extract

import (
	"regexp"
	"strings"
)

// Pass identifies which heuristic recovered the fragment.
type Pass int

const (
	// PassNone means no fragment was found.
	PassNone Pass = iota
	// PassRegex means the contiguous-block regex matched.
	PassRegex
	// PassScan means the fallback line scan matched.
	PassScan
)

func (p Pass) String() string {
	switch p {
	case PassRegex:
		return "regex"
	case PassScan:
		return "scan"
	default:
		return "none"
	}
}

// xmlBlock matches a contiguous XML document: an XML declaration through
// some closing tag, or a <data> root element, the well-known root of
// completed form instances. (?s) lets the block span many lines.
var xmlBlock = regexp.MustCompile(`(?s)(<\?xml\s.*?\?>.*?</[^>]+>|<data\s[^>]*>.*?</data>)`)

// FormXML extracts the completed form XML from player stdout.
//
// An empty result is not an error: it means the form did not visibly
// complete. FormXML is total and never panics on any input.
func FormXML(stdout string) (string, Pass) {
	if stdout == "" {
		return "", PassNone
	}

	if m := xmlBlock.FindString(stdout); m != "" {
		return strings.TrimSpace(m), PassRegex
	}

	if xml := scanLines(stdout); xml != "" {
		return xml, PassScan
	}

	return "", PassNone
}

// scanLines is the fallback pass: walk lines, enter in-fragment mode on
// an XML declaration or a tag-looking line (starts with <, not a
// comment, longer than 10 chars), accumulate until a closing-tag line,
// and accept the block only if it holds more than 3 '<' characters,
// a weak signal of real markup rather than a stray angle bracket.
func scanLines(stdout string) string {
	var xmlLines []string
	inXML := false

	for line := range strings.Lines(stdout) {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "<?xml") ||
			(!inXML && strings.HasPrefix(stripped, "<") && !strings.HasPrefix(stripped, "<!") && len(stripped) > 10) {
			inXML = true
		}
		if !inXML {
			continue
		}

		xmlLines = append(xmlLines, strings.TrimRight(line, "\n"))
		if strings.HasPrefix(stripped, "</") && strings.HasSuffix(stripped, ">") {
			candidate := strings.TrimSpace(strings.Join(xmlLines, "\n"))
			if strings.Count(candidate, "<") > 3 {
				return candidate
			}
		}
	}

	return ""
}

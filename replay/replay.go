// Package replay encodes a test definition into the line-oriented
// session script the interactive player reads on stdin.
//
// The grammar is fixed and narrow: navigation lines, one blank line to
// acknowledge the form-start prompt, a single :replay line carrying all
// answer directives, a :next line, and trailing blank lines to drain
// residual prompts. Token spelling is bit-exact; the player rejects
// nothing, it just silently fails to match, so tests assert the encoded
// output verbatim.
package replay

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/formward/formward/testdef"
)

// trailingBlankLines is the number of blank lines appended after :next
// to drain remaining prompts (triggers, calculated fields, the form-end
// screen). Chosen empirically; no documented upper bound exists for
// forms with deeper trigger chains, so treat this as tunable. Extra
// input after session end is ignored by the player.
const trailingBlankLines = 10

var indexedRef = regexp.MustCompile(`\[\d+\]$`)

// EnsureIndexed appends a [1] positional index to a reference that does
// not already end in one. The player's internal tree-reference strings
// always carry an index, and :replay matches on the indexed form.
// Already-indexed references pass through unchanged.
func EnsureIndexed(ref string) string {
	if indexedRef.MatchString(ref) {
		return ref
	}
	return ref + "[1]"
}

// Directive renders one answer as a parenthesized replay directive:
//
//	((/data/name[1]) (VALUE) (Jane))
//	((/data/q[1]) (SKIP))
//	((/data/group[1]) (NEW_REPEAT))
//
// Literal values are never quoted or escaped; callers own values that
// are valid within this grammar (no embedded parentheses).
func Directive(a testdef.Answer) string {
	ref := EnsureIndexed(a.Ref)
	switch a.Value {
	case testdef.ActionSkip:
		return fmt.Sprintf("((%s) (SKIP))", ref)
	case testdef.ActionNewRepeat:
		return fmt.Sprintf("((%s) (NEW_REPEAT))", ref)
	default:
		return fmt.Sprintf("((%s) (VALUE) (%s))", ref, a.Value)
	}
}

// Directives renders all answers joined by single spaces, in answer
// order. The protocol is order-independent; the order only makes
// encoded scripts reproducible.
func Directives(answers []testdef.Answer) string {
	parts := make([]string, 0, len(answers))
	for _, a := range answers {
		parts = append(parts, Directive(a))
	}
	return strings.Join(parts, " ")
}

// Script builds the complete stdin blob for one run.
//
// With answers: navigation lines, one blank line to pass the form-start
// screen, the :replay line, a :next line (advances past the last
// replayed field without re-submitting it; an empty line there would
// erase the value), then the trailing blank lines. Without answers the
// script is the navigation lines alone. The output always ends with a
// single newline.
func Script(navigation []string, answers []testdef.Answer) string {
	lines := append([]string(nil), navigation...)

	if len(answers) > 0 {
		lines = append(lines, "")
		lines = append(lines, ":replay "+Directives(answers))
		lines = append(lines, ":next")
		for range trailingBlankLines {
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// ScriptFor is a convenience wrapper taking a whole definition.
func ScriptFor(def *testdef.Definition) string {
	return Script(def.Navigation, def.Answers)
}

package parser

import (
	"regexp"
	"strings"
)

// decorRe matches pictographic and decorative symbols traders sprinkle around
// item names: country flags, fire marks, camels, plus the variation selector,
// keycap combiner and ZWJ that emoji sequences are built from.
var decorRe = regexp.MustCompile(`[\p{So}\p{Sk}\x{FE0F}\x{20E3}\x{200D}]`)

// CleanLabel strips decorative symbols and trailing punctuation from an item
// label and collapses whitespace runs. The same cleaning is applied to
// cascade output, fallback output and user-supplied query terms; anything
// less and lookups silently miss.
func CleanLabel(label string) string {
	s := decorRe.ReplaceAllString(label, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,:;!?-")
	return strings.TrimSpace(s)
}

// Normalize canonicalizes an item label into the key used for all matching
// and grouping. Total and idempotent: it never fails and normalizing twice
// equals normalizing once.
func Normalize(label string) string {
	return strings.ToLower(CleanLabel(label))
}

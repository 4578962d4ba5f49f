package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// StatusPriced marks a candidate that carries an explicit numeric price.
// Status-only lines keep the quoted keyword verbatim, uppercased (e.g. "BOR").
const StatusPriced = "priced"

// Candidate is one extracted (label, price, status) tuple before
// normalization and persistence. Price is nil for status-only entries.
type Candidate struct {
	Label  string
	Price  *decimal.Decimal
	Status string
}

type linePattern struct {
	re     *regexp.Regexp
	status bool // group 2 is a status keyword instead of a price
}

// Patterns are tried per physical line in priority order; the first match
// wins the line. Only horizontal whitespace separates label from value — a
// pattern that swallowed newlines would merge adjacent item entries into one.
var linePatterns = []linePattern{
	// Tab or wide-gap separated price, the common shape in formatted lists.
	{re: regexp.MustCompile(`^(.*?\S)(?:\t+| {2,})(\d{5,6}(?:[.,]\d+)?)$`)},
	// Price followed by an explicit currency word.
	{re: regexp.MustCompile(`(?i)^(.*?\S)[ \t]+(\d{5,6}(?:[.,]\d+)?)[ \t]*(?:сумм|сум|sum|so'm|som)\.?$`)},
	// Single whitespace run before the price (after decoration stripping).
	{re: regexp.MustCompile(`^(.*?\S)[ \t]+(\d{5,6}(?:[.,]\d+)?)$`)},
	// Availability keyword instead of a price.
	{re: regexp.MustCompile(`(?i)^(.*?\S)[ \t]+(BOR|YOQ|YO'Q|MAVJUD|TUGADI|SOLD OUT|SOLD|AVAILABLE|UNAVAILABLE)\.?$`), status: true},
}

// Cascade is the deterministic extraction stage.
type Cascade struct{}

// Extract runs the pattern stage over one raw message. It never fails;
// malformed or empty input yields nil. An empty result means the caller may
// consult the message-level inference fallback.
func (Cascade) Extract(text string) []Candidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []Candidate
	seen := map[string]struct{}{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(decorRe.ReplaceAllString(raw, " "))
		if line == "" {
			continue
		}
		cand, ok := matchLine(line)
		if !ok {
			continue
		}
		key := Normalize(cand.Label)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}

func matchLine(line string) (Candidate, bool) {
	for _, p := range linePatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// First matching pattern owns the line, even when validation
		// rejects it afterwards.
		return buildCandidate(m[1], m[2], p.status)
	}
	return Candidate{}, false
}

func buildCandidate(rawLabel, rawValue string, isStatus bool) (Candidate, bool) {
	label := CleanLabel(rawLabel)
	if utf8.RuneCountInString(label) < 3 {
		return Candidate{}, false
	}
	// Phone numbers and similar contact noise.
	if strings.ContainsRune(label, '+') {
		return Candidate{}, false
	}
	if isStatus {
		return Candidate{Label: label, Status: strings.ToUpper(rawValue)}, true
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(rawValue, ",", "."))
	if err != nil {
		return Candidate{}, false
	}
	if !PlausiblePrice(label, price) {
		return Candidate{}, false
	}
	return Candidate{Label: label, Price: &price, Status: StatusPriced}, true
}

// PlausiblePrice reports whether price is a realistic standalone quote for
// label. Quotes in the source groups run 14000-20000, so anything below 10000
// is an item code, not a price. A price that merely repeats the trailing
// digits of the label ("Jm370" / 37000, "BL5200" / 5200) is a false match:
// item names routinely embed grade numbers.
func PlausiblePrice(label string, price decimal.Decimal) bool {
	if price.LessThan(decimal.NewFromInt(10000)) {
		return false
	}
	parts := strings.Fields(label)
	if len(parts) == 0 {
		return false
	}
	var digits strings.Builder
	for _, r := range parts[len(parts)-1] {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return true
	}
	tail := digits.String()
	whole := price.Truncate(0).String()
	if tail == whole || strings.HasPrefix(whole, tail) || strings.HasPrefix(tail, whole) {
		return false
	}
	return true
}

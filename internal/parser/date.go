package parser

import (
	"regexp"
	"strconv"
	"time"
)

var (
	keycapRe = regexp.MustCompile(`[\x{FE0F}\x{20E3}]`)
	dateRe   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
)

// ExtractDate finds an explicit DD.MM.YYYY quote date in the message body.
// Source groups sometimes write the date with keycap-emoji digits
// (1️⃣9️⃣.0️⃣1️⃣.2️⃣0️⃣2️⃣6️⃣); stripping the combiners reduces that to the
// plain form before matching.
func ExtractDate(text string) (time.Time, bool) {
	plain := keycapRe.ReplaceAllString(text, "")
	m := dateRe.FindStringSubmatch(plain)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// Package textutil cleans up registrar field values and parses the free-text
// dates used by the JSON feed.
package textutil

import (
	"regexp"
	"strings"
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	monthDayPattern = regexp.MustCompile(`([A-Za-z]+)\s+(\d+)`)
)

var monthNumbers = map[string]string{
	"January":   "01",
	"February":  "02",
	"March":     "03",
	"April":     "04",
	"May":       "05",
	"June":      "06",
	"July":      "07",
	"August":    "08",
	"September": "09",
	"October":   "10",
	"November":  "11",
	"December":  "12",
}

// StripTags removes every <...> tag and trims surrounding whitespace.
// Entities are left as-is.
func StripTags(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
}

// Unquote removes one pair of wrapping double quotes. Strings shorter than
// two characters are returned unchanged.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// MonthDay is a two-digit month and day, e.g. {"04", "14"}.
type MonthDay struct {
	Month string
	Day   string
}

// ParseMonthDay reads dates like "January 20 (Mon)". For ranges such as
// "April 14 (Mon) - May 16 (Fri)" only the start is used.
func ParseMonthDay(text string) (MonthDay, bool) {
	start, _, _ := strings.Cut(text, " - ")
	m := monthDayPattern.FindStringSubmatch(start)
	if m == nil {
		return MonthDay{}, false
	}
	month, ok := monthNumbers[m[1]]
	if !ok {
		return MonthDay{}, false
	}
	day := m[2]
	if len(day) < 2 {
		day = "0" + day
	}
	return MonthDay{Month: month, Day: day}, true
}

// Package term decodes registrar term codes (YYYYMM) and decides which
// upstream serves a given term.
package term

import (
	"fmt"
	"strconv"
	"time"
)

// Month codes used by the registrar.
const (
	MonthSpring = "02"
	MonthSummer = "05"
	MonthFall   = "08"
)

const SeasonUnknown = "Unknown"

// InvalidTermError reports a malformed term code.
type InvalidTermError struct {
	Code   string
	Reason string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("invalid term %q: %s", e.Code, e.Reason)
}

// Term is a decoded term code.
type Term struct {
	Code      string
	Year      int
	MonthCode string
	Season    string
}

// Decode parses a 6-character term code. An unrecognized month code is not
// an error: the season is reported as "Unknown".
func Decode(code string) (Term, error) {
	if len(code) != 6 {
		return Term{}, &InvalidTermError{Code: code, Reason: "must be 6 characters (YYYYMM)"}
	}
	yearPart := code[:4]
	for _, r := range yearPart {
		if r < '0' || r > '9' {
			return Term{}, &InvalidTermError{Code: code, Reason: "year is not a number"}
		}
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year <= 0 {
		return Term{}, &InvalidTermError{Code: code, Reason: "year must be positive"}
	}

	month := code[4:]
	return Term{
		Code:      code,
		Year:      year,
		MonthCode: month,
		Season:    seasonFor(month),
	}, nil
}

// MustDecode is Decode for codes known to be valid, such as those built by
// LandingTerms.
func MustDecode(code string) Term {
	t, err := Decode(code)
	if err != nil {
		panic(err)
	}
	return t
}

func seasonFor(month string) string {
	switch month {
	case MonthSpring:
		return "Spring"
	case MonthSummer:
		return "Summer"
	case MonthFall:
		return "Fall"
	default:
		return SeasonUnknown
	}
}

// AcademicYear is the JSON feed's aggregation unit, e.g. "2025-2026".
func (t Term) AcademicYear() string {
	return fmt.Sprintf("%d-%d", t.Year, t.Year+1)
}

// YearString is the term year as it appears in feed records.
func (t Term) YearString() string {
	return strconv.Itoa(t.Year)
}

// CalendarName is the X-WR-CALNAME and download file stem.
func (t Term) CalendarName() string {
	return fmt.Sprintf("GT %s %d Calendar", t.Season, t.Year)
}

// SemesterCodes lists the feed's semester tags that belong to a month code.
func SemesterCodes(monthCode string) []string {
	switch monthCode {
	case MonthSpring:
		return []string{"2"}
	case MonthSummer:
		return []string{"5A", "5M", "5F", "5E", "5L", "Summer-All"}
	case MonthFall:
		return []string{"8"}
	default:
		return []string{}
	}
}

// Kind identifies an upstream format.
type Kind int

const (
	Legacy Kind = iota
	Modern
)

func (k Kind) String() string {
	if k == Modern {
		return "modern"
	}
	return "legacy"
}

// DefaultModernFromYear is the first year published only through the JSON feed.
const DefaultModernFromYear = 2025

// Selector picks the upstream for a term year. The cut-over year is
// configuration because upstream availability changes over time.
type Selector struct {
	ModernFromYear int
}

func (s Selector) Select(year int) Kind {
	from := s.ModernFromYear
	if from <= 0 {
		from = DefaultModernFromYear
	}
	if year >= from {
		return Modern
	}
	return Legacy
}

// LandingTerms returns Spring/Summer/Fall codes for the years
// [now.Year()-back, now.Year()+ahead], oldest first.
func LandingTerms(now time.Time, back, ahead int) []Term {
	cur := now.Year()
	out := make([]Term, 0, (back+ahead+1)*3)
	for y := cur - back; y <= cur+ahead; y++ {
		for _, m := range []string{MonthSpring, MonthSummer, MonthFall} {
			out = append(out, MustDecode(fmt.Sprintf("%04d%s", y, m)))
		}
	}
	return out
}

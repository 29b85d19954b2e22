// Package normalize maps raw upstream records into model.Event.
package normalize

import (
	"strings"

	"github.com/samber/lo"

	"gtcal/internal/model"
	"gtcal/internal/term"
	"gtcal/internal/textutil"
)

// Legacy converts term-file rows. Rows without a Date or Title are dropped.
func Legacy(records []model.LegacyRecord) []model.Event {
	return lo.FilterMap(records, func(r model.LegacyRecord, _ int) (model.Event, bool) {
		ev := model.Event{
			Date:     field(r, model.FieldDate),
			EndDate:  field(r, model.FieldEndDate),
			Time:     field(r, model.FieldTime),
			EndTime:  field(r, model.FieldEndTime),
			Title:    field(r, model.FieldTitle),
			Category: field(r, model.FieldCategory),
			Body:     field(r, model.FieldBody),
			Location: field(r, model.FieldLocation),
		}
		return ev, ev.Emittable()
	})
}

// Modern keeps the feed entries belonging to t and converts them. Entries
// whose date text can't be read are dropped.
func Modern(records []model.ModernRecord, t term.Term) []model.Event {
	codes := term.SemesterCodes(t.MonthCode)
	year := t.YearString()

	inTerm := lo.Filter(records, func(r model.ModernRecord, _ int) bool {
		return r.Year == year && lo.Contains(codes, r.Semester)
	})

	return lo.FilterMap(inTerm, func(r model.ModernRecord, _ int) (model.Event, bool) {
		md, ok := textutil.ParseMonthDay(r.Date)
		if !ok {
			return model.Event{}, false
		}
		date := md.Month + "/" + md.Day + "/" + r.Year
		ev := model.Event{
			Date:     date,
			EndDate:  date,
			Title:    textutil.StripTags(r.Event),
			Category: clean(r.Category),
		}
		return ev, ev.Emittable()
	})
}

func field(r model.LegacyRecord, name string) string {
	return clean(r[name])
}

// clean folds blank values and the registrar's "null" into "".
func clean(v string) string {
	v = strings.TrimSpace(v)
	if v == model.NullSentinel {
		return ""
	}
	return v
}

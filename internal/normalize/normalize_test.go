package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtcal/internal/model"
	"gtcal/internal/term"
)

func TestLegacy(t *testing.T) {
	records := []model.LegacyRecord{
		{
			"Date": "08/19/2024", "EndDate": "08/19/2024", "Time": "08:00 AM", "EndTime": "null",
			"Title": "First day of classes", "EventCategory": "\"Academic\"", "Body": "null", "EventLocation": "",
		},
		{"Date": "null", "Title": "No date"},
		{"Date": "08/20/2024", "Title": "  "},
		{"Date": "12/09/2024", "EndDate": "12/13/2024", "Title": "Finals, Week"},
	}

	got := Legacy(records)
	require.Len(t, got, 2)

	assert.Equal(t, model.Event{
		Date:     "08/19/2024",
		EndDate:  "08/19/2024",
		Time:     "08:00 AM",
		Title:    "First day of classes",
		Category: "\"Academic\"",
	}, got[0])
	assert.Equal(t, "Finals, Week", got[1].Title)
	assert.Empty(t, got[1].Category)
}

func TestModernFiltersByTerm(t *testing.T) {
	records := []model.ModernRecord{
		{Year: "2025", Semester: "8", Date: "August 18 (Mon)", Event: "<p>Orientation</p>", Category: "Academic"},
		{Year: "2025", Semester: "2", Date: "January 6 (Mon)", Event: "Spring classes", Category: "Academic"},
		{Year: "2026", Semester: "8", Date: "August 17 (Mon)", Event: "Next fall", Category: "Academic"},
		{Year: "2025", Semester: "8", Date: "TBA", Event: "Unscheduled", Category: "Academic"},
		{Year: "2025", Semester: "8", Date: "December 8 (Mon) - December 12 (Fri)", Event: "<b>Final</b> exams", Category: "null"},
	}

	got := Modern(records, term.MustDecode("202508"))
	require.Len(t, got, 2)

	assert.Equal(t, model.Event{
		Date:     "08/18/2025",
		EndDate:  "08/18/2025",
		Title:    "Orientation",
		Category: "Academic",
	}, got[0])
	assert.Equal(t, "12/08/2025", got[1].Date)
	assert.Equal(t, "Final exams", got[1].Title)
	assert.Empty(t, got[1].Category)
}

func TestModernSummerCodes(t *testing.T) {
	records := []model.ModernRecord{
		{Year: "2025", Semester: "5A", Date: "May 19 (Mon)", Event: "Early short session"},
		{Year: "2025", Semester: "Summer-All", Date: "July 4 (Fri)", Event: "Holiday"},
		{Year: "2025", Semester: "8", Date: "August 18 (Mon)", Event: "Fall"},
	}

	got := Modern(records, term.MustDecode("202505"))
	require.Len(t, got, 2)
	assert.Equal(t, "05/19/2025", got[0].Date)
	assert.Equal(t, "07/04/2025", got[1].Date)
}

func TestModernUnknownMonthMatchesNothing(t *testing.T) {
	records := []model.ModernRecord{{Year: "2025", Semester: "8", Date: "August 18", Event: "x"}}
	assert.Empty(t, Modern(records, term.MustDecode("202511")))
}

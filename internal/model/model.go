package model

// Event is the normalized shape every upstream record is mapped into before
// serialization. An empty field means the upstream did not provide a value;
// the registrar's literal "null" is folded into that zero value.
type Event struct {
	// Date and EndDate use MM/DD/YYYY, as both upstreams do.
	Date    string
	EndDate string

	// Time and EndTime use 12-hour "HH:MM AM" text.
	Time    string
	EndTime string

	Title    string
	Category string
	Body     string
	Location string
}

// Emittable reports whether the event carries the fields needed to become
// a VEVENT.
func (e Event) Emittable() bool {
	return e.Date != "" && e.Title != ""
}

// LegacyRecord is one row of a legacy term file keyed by trimmed header name.
type LegacyRecord map[string]string

// Legacy header names.
const (
	FieldDate     = "Date"
	FieldEndDate  = "EndDate"
	FieldTime     = "Time"
	FieldEndTime  = "EndTime"
	FieldTitle    = "Title"
	FieldCategory = "EventCategory"
	FieldBody     = "Body"
	FieldLocation = "EventLocation"
	NullSentinel  = "null"
)

// ModernRecord is one entry of the JSON feed's data array.
type ModernRecord struct {
	Year     string `json:"year"`
	Semester string `json:"semester"`
	Date     string `json:"date"`
	Event    string `json:"event"`
	Category string `json:"category"`
}

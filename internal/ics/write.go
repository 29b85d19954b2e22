package ics

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	appLog "gtcal/internal/log"
	"gtcal/internal/model"
	"gtcal/internal/textutil"
)

const (
	// TimeZone labels every timed DTSTART/DTEND. No conversion is done.
	TimeZone  = "America/New_York"
	ProductID = "-//gtcal//Academic Calendar//EN"

	// Events lasting more than this many days are written as separate
	// start and end markers instead of one long block.
	splitAfterDays = 5

	maxLineOctets = 75

	dateLayout      = "20060102"
	localLayout     = "20060102T150405"
	utcLayout       = "20060102T150405Z"
	eventDateLayout = "1/2/2006"
)

var (
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)
	uidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gtcal"))
	textEscaper  = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\r\n", `\n`, "\n", `\n`)
)

// timeZoneLines defines TimeZone with the US daylight saving rules in
// effect since 2007.
var timeZoneLines = []string{
	"BEGIN:VTIMEZONE",
	"TZID:" + TimeZone,
	"X-LIC-LOCATION:" + TimeZone,
	"BEGIN:DAYLIGHT",
	"TZOFFSETFROM:-0500",
	"TZOFFSETTO:-0400",
	"TZNAME:EDT",
	"DTSTART:19700308T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU",
	"END:DAYLIGHT",
	"BEGIN:STANDARD",
	"TZOFFSETFROM:-0400",
	"TZOFFSETTO:-0500",
	"TZNAME:EST",
	"DTSTART:19701101T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	"END:STANDARD",
	"END:VTIMEZONE",
}

// Calendar is everything needed to render one document.
type Calendar struct {
	// Name becomes X-WR-CALNAME.
	Name string
	// UIDSeed namespaces event UIDs, typically the term code, so the same
	// input renders the same UIDs.
	UIDSeed string
	Events  []model.Event
	// Stamp is written as DTSTAMP; time.Now() if zero.
	Stamp time.Time
}

// Write renders cal as an iCalendar document to w.
func Write(w io.Writer, cal Calendar) error {
	_, err := io.WriteString(w, Render(cal))
	return err
}

// Render returns cal as iCalendar text. Events without a date or title, or
// with a date that doesn't parse, are left out.
func Render(cal Calendar) string {
	stamp := cal.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	var (
		events []vevent
		timed  bool
	)
	for i, ev := range cal.Events {
		blocks, ok := eventBlocks(ev)
		if !ok {
			continue
		}
		for _, b := range blocks {
			b.uid = eventUID(cal.UIDSeed, i, b)
			timed = timed || b.start.timed
			events = append(events, b)
		}
	}

	var lw lineWriter
	lw.line("BEGIN:VCALENDAR")
	lw.line("VERSION:2.0")
	lw.line("PRODID:" + ProductID)
	lw.line("CALSCALE:GREGORIAN")
	lw.line("METHOD:PUBLISH")
	lw.line("X-WR-CALNAME:" + escapeText(cal.Name))
	lw.line("X-WR-TIMEZONE:" + TimeZone)

	// Every TZID reference needs a matching VTIMEZONE.
	if timed {
		for _, l := range timeZoneLines {
			lw.line(l)
		}
	}
	for _, b := range events {
		b.write(&lw, stamp)
	}

	lw.line("END:VCALENDAR")
	return lw.String()
}

// moment is a DTSTART/DTEND value: a date, or a local date-time.
type moment struct {
	t     time.Time
	timed bool
}

func (m moment) property(name string) string {
	if m.timed {
		return name + ";TZID=" + TimeZone + ":" + m.t.Format(localLayout)
	}
	return name + ";VALUE=DATE:" + m.t.Format(dateLayout)
}

type vevent struct {
	uid         string
	summary     string
	description string
	location    string
	start, end  moment
}

func (v vevent) write(lw *lineWriter, stamp time.Time) {
	lw.line("BEGIN:VEVENT")
	lw.line("UID:" + v.uid)
	lw.line("DTSTAMP:" + stamp.UTC().Format(utcLayout))
	lw.line("SUMMARY:" + escapeText(v.summary))
	lw.line(v.start.property("DTSTART"))
	lw.line(v.end.property("DTEND"))
	lw.line("DESCRIPTION:" + escapeText(v.description))
	lw.line("LOCATION:" + escapeText(v.location))
	lw.line("END:VEVENT")
}

// eventBlocks turns one normalized event into one VEVENT, or two when it
// spans more than splitAfterDays.
func eventBlocks(ev model.Event) ([]vevent, bool) {
	if !ev.Emittable() {
		return nil, false
	}

	startDate, err := time.Parse(eventDateLayout, ev.Date)
	if err != nil {
		appLog.Debug("skipping event with unreadable date", "title", ev.Title, "date", ev.Date)
		return nil, false
	}
	endDate := startDate
	if ev.EndDate != "" {
		if d, err := time.Parse(eventDateLayout, ev.EndDate); err == nil && !d.Before(startDate) {
			endDate = d
		}
	}

	startClock, timed := parseClock(ev.Time)
	endClock, hasEndClock := parseClock(ev.EndTime)
	if !hasEndClock {
		endClock = startClock
	}

	desc := description(ev)
	loc := textutil.Unquote(ev.Location)

	startAt := anchor(startDate, startClock, timed)
	endAt := anchor(endDate, endClock, timed)
	if spanDays(startAt, endAt) > splitAfterDays {
		return []vevent{
			{summary: "Start - " + ev.Title, description: desc, location: loc, start: startAt, end: pointEnd(startAt)},
			{summary: "End - " + ev.Title, description: desc, location: loc, start: endAt, end: pointEnd(endAt)},
		}, true
	}

	end := endAt
	if timed {
		if end.t.Before(startAt.t) {
			end = startAt
		}
	} else {
		// DTEND of a date-only event is exclusive.
		end = moment{t: endDate.AddDate(0, 0, 1)}
	}
	return []vevent{{summary: ev.Title, description: desc, location: loc, start: startAt, end: end}}, true
}

// spanDays is the length of an event in days. Date-only events count whole
// calendar days; timed events include the time of day.
func spanDays(start, end moment) float64 {
	if !start.timed {
		return float64(int(end.t.Sub(start.t).Hours() / 24))
	}
	return end.t.Sub(start.t).Hours() / 24
}

func anchor(date time.Time, clock time.Duration, timed bool) moment {
	if !timed {
		return moment{t: date}
	}
	return moment{t: date.Add(clock), timed: true}
}

// pointEnd is the DTEND of a single-day or single-instant marker.
func pointEnd(start moment) moment {
	if start.timed {
		return start
	}
	return moment{t: start.t.AddDate(0, 0, 1)}
}

// parseClock reads "HH:MM AM/PM" into an offset from midnight.
// 12 AM is midnight; PM hours below 12 move to the afternoon.
func parseClock(s string) (time.Duration, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, false
	}
	pm := strings.EqualFold(m[3], "PM")
	switch {
	case !pm && hour == 12:
		hour = 0
	case pm && hour < 12:
		hour += 12
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, true
}

func description(ev model.Event) string {
	var parts []string
	if c := textutil.Unquote(ev.Category); c != "" {
		parts = append(parts, "<b>Category: "+c+"</b>")
	}
	if b := textutil.Unquote(ev.Body); b != "" {
		parts = append(parts, b)
	}
	return strings.Join(parts, "\n\n")
}

func eventUID(seed string, index int, v vevent) string {
	name := seed + "|" + strconv.Itoa(index) + "|" + v.summary + "|" + v.start.property("DTSTART")
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@gtcal"
}

// escapeText applies RFC 5545 TEXT escaping. Commas in particular must be
// escaped or clients split the value.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// lineWriter accumulates content lines, folding each at 75 octets.
type lineWriter struct {
	b strings.Builder
}

func (lw *lineWriter) line(s string) {
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		lw.b.WriteString(s[:cut])
		lw.b.WriteString("\r\n ")
		s = s[cut:]
		// Continuation lines spend one octet on the leading space.
		limit = maxLineOctets - 1
	}
	lw.b.WriteString(s)
	lw.b.WriteString("\r\n")
}

func (lw *lineWriter) String() string {
	return lw.b.String()
}

package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "gtcal/internal/log"
)

// Report summarizes a rendered document after parsing it back with an
// independent iCalendar implementation.
type Report struct {
	Name   string
	Events []ReportEvent
	// Problems lists VEVENTs missing properties clients rely on.
	Problems []string
}

// ReportEvent is the subset of a VEVENT worth checking.
type ReportEvent struct {
	UID     string
	Summary string
	Start   string
	AllDay  bool
}

// Inspect parses body with golang-ical. It fails only if the document as a
// whole can't be parsed; per-event issues land in Report.Problems.
func Inspect(body []byte) (Report, error) {
	var rep Report
	if len(body) == 0 {
		return rep, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return rep, err
	}

	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			rep.Name = p.Value
		}
	}

	for i, ve := range cal.Events() {
		ev, perr := inspectVEvent(ve)
		if perr != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("vevent %d: %v", i, perr))
			continue
		}
		rep.Events = append(rep.Events, ev)
	}

	appLog.Debug("ics inspect completed", "event_count", len(rep.Events), "problems", len(rep.Problems))
	return rep, nil
}

func inspectVEvent(ve *ical.VEvent) (ReportEvent, error) {
	var out ReportEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if out.Summary == "" {
		return out, errors.New("missing SUMMARY")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.Start = dtStart.Value

	// VALUE=DATE or no 'T' in the value -> all-day
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(out.Start, "T") {
		out.AllDay = true
	}

	if ve.GetProperty(ical.ComponentPropertyDtEnd) == nil {
		return out, errors.New("missing DTEND")
	}
	if ve.GetProperty(ical.ComponentPropertyDtstamp) == nil {
		return out, errors.New("missing DTSTAMP")
	}

	return out, nil
}

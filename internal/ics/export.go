// Package ics writes the loaded calendar as an iCalendar feed so it can be
// subscribed to from other calendar apps.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const productID = "-//studycal//calendar export//EN"

// Custom properties carried alongside the standard ones.
const (
	propEditable ical.ComponentProperty = "X-STUDYCAL-EDITABLE"
	propOrigin   ical.ComponentProperty = "X-STUDYCAL-ORIGIN"
)

// Export serializes events as an RFC 5545 calendar. Recurring templates keep
// their RRULE; all-day events are written with VALUE=DATE.
func Export(name string, events []model.CalendarEvent, generatedAt time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := generatedAt.UTC()
	for _, ev := range events {
		if ev.Start.IsZero() {
			return "", fmt.Errorf("export %s: event has no start", ev.Key())
		}

		ve := cal.AddEvent(ev.Key() + "@studycal")
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			end := ev.End
			if !end.After(ev.Start) {
				end = ev.Start.AddDate(0, 0, 1)
			}
			ve.SetAllDayEndAt(end)
		} else {
			ve.SetStartAt(ev.Start)
			if ev.HasEnd() {
				ve.SetEndAt(ev.End)
			}
		}

		if rule := strings.TrimPrefix(strings.TrimSpace(ev.Recurrence), "RRULE:"); rule != "" {
			ve.AddProperty(ical.ComponentPropertyRrule, rule)
		}

		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Category)))
		ve.SetProperty(propOrigin, string(ev.Origin))
		ve.SetProperty(propEditable, boolValue(ev.Editable))
	}

	appLog.Info("ics export completed", "name", name, "event_count", len(events))
	return cal.Serialize(), nil
}

func boolValue(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

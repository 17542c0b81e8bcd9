// Package schedule turns backend schedule payloads into canonical
// calendar events and groups them by display day.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"studycal/internal/dateutil"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const defaultTitle = "Event"

// Normalizer converts raw backend records into model.CalendarEvent values.
//
// Timestamps from the backend are UTC. Zoned values keep their zone, naive
// date-times are read as UTC, and date-only values become all-day events
// anchored at midnight of Location.
type Normalizer struct {
	Location *time.Location
}

// NewNormalizer returns a Normalizer for the given display location.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Location: loc}
}

// Normalize converts payload.Events in source order. Entries without a
// parseable start are dropped and logged.
func (n *Normalizer) Normalize(p Payload) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(p.Events))
	for i, raw := range p.Events {
		ev, err := n.event(raw)
		if err != nil {
			appLog.Error("schedule: dropping event", err, "index", i, "id", string(raw.ID), "title", raw.Title)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (n *Normalizer) event(raw RawEvent) (model.CalendarEvent, error) {
	start, allDay, err := n.parseTimestamp(raw.Start)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("start %q: %w", raw.Start, err)
	}

	var end time.Time
	if strings.TrimSpace(raw.End) != "" {
		e, endAllDay, err := n.parseTimestamp(raw.End)
		switch {
		case err != nil:
			appLog.Warn("schedule: ignoring unparseable end", "id", string(raw.ID), "end", raw.End)
		case e.Before(start) && wrapsMidnight(start, e, allDay || endAllDay):
			// Saved as one date plus two clock values, the end crossed midnight.
			end = e.AddDate(0, 0, 1)
			appLog.Debug("schedule: end moved past midnight", "id", string(raw.ID), "start", raw.Start, "end", raw.End)
		case e.Before(start):
			appLog.Warn("schedule: ignoring end before start", "id", string(raw.ID), "start", raw.Start, "end", raw.End)
		default:
			end = e
		}
	}

	category := categoryOf(raw.ExtendedProps.Type, raw.ClassName)
	custom := bool(raw.ExtendedProps.IsCustom)

	origin := model.OriginUniversity
	switch {
	case category == model.CategoryTaskDeadline:
		origin = model.OriginTaskDeadline
	case custom:
		origin = model.OriginCustom
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = defaultTitle
	}

	return model.CalendarEvent{
		ID:          string(raw.ID),
		Origin:      origin,
		Title:       title,
		Description: raw.ExtendedProps.Description,
		Location:    raw.ExtendedProps.Location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Category:    category,
		// Deadlines are view-only even when they come from a personal record.
		Editable:   custom && category != model.CategoryTaskDeadline,
		Recurrence: strings.TrimSpace(raw.ExtendedProps.RRule),
	}, nil
}

// TaskDeadlines converts task records into read-only deadline events.
// Tasks without a deadline have nothing to show and are skipped.
func (n *Normalizer) TaskDeadlines(tasks []RawTask) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(tasks))
	for _, t := range tasks {
		if t.Deadline == nil || strings.TrimSpace(*t.Deadline) == "" {
			continue
		}
		at, allDay, err := n.parseTimestamp(*t.Deadline)
		if err != nil {
			appLog.Error("schedule: dropping task deadline", err, "task_id", string(t.ID))
			continue
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = defaultTitle
		}
		out = append(out, model.CalendarEvent{
			ID:          string(t.ID),
			Origin:      model.OriginTaskDeadline,
			Title:       title,
			Description: t.Description,
			Start:       at,
			AllDay:      allDay,
			Category:    model.CategoryTaskDeadline,
		})
	}
	return out
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var errEmptyTimestamp = errors.New("empty timestamp")

// parseTimestamp reports whether the value was date-only (all-day).
func (n *Normalizer) parseTimestamp(v string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errEmptyTimestamp
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, false, nil
		}
	}
	if t, err := dateutil.ParseDate(v, n.Location); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, errors.New("unrecognized timestamp format")
}

var typeAliases = map[string]model.Category{
	"lecture":       model.CategoryLecture,
	"лекція":        model.CategoryLecture,
	"lab":           model.CategoryLab,
	"laboratory":    model.CategoryLab,
	"лабораторна":   model.CategoryLab,
	"practice":      model.CategoryPractice,
	"practical":     model.CategoryPractice,
	"практична":     model.CategoryPractice,
	"exam":          model.CategoryExam,
	"екзамен":       model.CategoryExam,
	"deadline":      model.CategoryTaskDeadline,
	"task":          model.CategoryTaskDeadline,
	"task-deadline": model.CategoryTaskDeadline,
	"other":         model.CategoryCustomOther,
	"custom":        model.CategoryCustomOther,
	"custom-other":  model.CategoryCustomOther,
}

// categoryOf resolves extendedProps.type first and falls back to an
// "event-<type>" class name.
func categoryOf(typ string, classNames []string) model.Category {
	if c, ok := typeAliases[strings.ToLower(strings.TrimSpace(typ))]; ok {
		return c
	}
	if strings.TrimSpace(typ) == "" {
		for _, cn := range classNames {
			name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(cn)), "event-")
			if !ok {
				continue
			}
			if c, ok := typeAliases[name]; ok {
				return c
			}
		}
	}
	return model.CategoryCustomOther
}

// DayIndex maps a "YYYY-MM-DD" display date to its events in start order.
type DayIndex map[string][]model.CalendarEvent

// Keys returns the dates in ascending order.
func (d DayIndex) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupByDay places every event on the local date of its start in loc.
// Within a day events are ordered by start; ties keep source order.
func GroupByDay(events []model.CalendarEvent, loc *time.Location) DayIndex {
	if loc == nil {
		loc = time.Local
	}
	idx := make(DayIndex)
	for _, ev := range events {
		key := dateutil.FormatDate(ev.Start.In(loc))
		idx[key] = append(idx[key], ev)
	}
	for _, day := range idx {
		sort.SliceStable(day, func(i, j int) bool {
			return day[i].Start.Before(day[j].Start)
		})
	}
	return idx
}

// wrapsMidnight reports whether end, on the same date as start and less
// than a day before it, is really a clock time on the following day.
func wrapsMidnight(start, end time.Time, allDay bool) bool {
	if allDay || start.Sub(end) >= 24*time.Hour {
		return false
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.In(start.Location()).Date()
	return sy == ey && sm == em && sd == ed
}

package model

import (
	"strconv"
	"strings"
	"time"
)

// Category is a rendering hint derived from the source event type.
type Category string

const (
	CategoryLecture      Category = "lecture"
	CategoryLab          Category = "lab"
	CategoryPractice     Category = "practice"
	CategoryExam         Category = "exam"
	CategoryCustomOther  Category = "custom-other"
	CategoryTaskDeadline Category = "task-deadline"
)

// Style returns the CSS class used for the category.
func (c Category) Style() string {
	if c == "" {
		c = CategoryCustomOther
	}
	return "event-" + string(c)
}

// PayloadType maps a category back to the "type" field the backend stores
// for custom events.
func (c Category) PayloadType() string {
	switch c {
	case CategoryLecture, CategoryLab, CategoryPractice, CategoryExam:
		return string(c)
	default:
		return "other"
	}
}

// Origin records where an event came from.
type Origin string

const (
	OriginCustom       Origin = "custom"
	OriginUniversity   Origin = "university"
	OriginTaskDeadline Origin = "task-deadline"
)

// CalendarEvent is the canonical event shape after normalization.
type CalendarEvent struct {
	// ID is the backend identifier, unique within Origin.
	ID     string `json:"id"`
	Origin Origin `json:"origin"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	// Start is always zone-qualified; server values arrive as UTC.
	Start time.Time `json:"start"`
	// End is zero for point-in-time entries such as deadlines.
	End    time.Time `json:"end,omitzero"`
	AllDay bool      `json:"all_day,omitempty"`

	Category Category `json:"category"`
	Editable bool     `json:"editable"`

	// Recurrence is the raw RRULE of a template event, empty otherwise.
	Recurrence string `json:"recurrence,omitempty"`
	// InstanceKey tells occurrences of one recurring event apart.
	InstanceKey string `json:"instance_key,omitempty"`
}

// HasEnd reports whether the event carries an end time.
func (e CalendarEvent) HasEnd() bool {
	return !e.End.IsZero()
}

// Key identifies a single rendered entry, including recurring instances.
func (e CalendarEvent) Key() string {
	if e.InstanceKey != "" {
		return string(e.Origin) + ":" + e.ID + "@" + e.InstanceKey
	}
	return string(e.Origin) + ":" + e.ID
}

// EditTarget is the event and/or date an open menu or modal refers to.
type EditTarget struct {
	EventID string `json:"event_id,omitempty"`
	Date    string `json:"date"`
}

// CalendarState is the per-session calendar state. Events are replaced
// wholesale on every fetch.
type CalendarState struct {
	VisibleMonth  time.Time       `json:"visible_month"`
	Group         string          `json:"group"`
	Subgroup      int             `json:"subgroup"`
	Events        []CalendarEvent `json:"events"`
	EditingTarget *EditTarget     `json:"editing_target,omitempty"`
}

// FindEvent returns the event with the given key or backend ID.
func (s *CalendarState) FindEvent(id string) (CalendarEvent, bool) {
	for _, ev := range s.Events {
		if ev.Key() == id {
			return ev, true
		}
	}
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return CalendarEvent{}, false
}

// ParseSubgroup accepts the loose values the backend and forms produce and
// returns 1 or 2. Anything else maps to 1.
func ParseSubgroup(v any) int {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case string:
		n, _ = strconv.Atoi(strings.TrimSpace(x))
	}
	if n == 2 {
		return 2
	}
	return 1
}

// ValidSubgroup reports whether n is a selectable subgroup.
func ValidSubgroup(n int) bool {
	return n == 1 || n == 2
}

// EventPayload is the body of POST /api/event. A non-empty ID makes it an
// update, otherwise the backend creates a new event.
type EventPayload struct {
	ID        string `json:"id,omitempty"`
	GroupName string `json:"group_name"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// IsUpdate reports whether the payload targets an existing event.
func (p EventPayload) IsUpdate() bool {
	return p.ID != ""
}

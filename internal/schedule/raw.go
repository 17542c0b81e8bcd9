package schedule

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Payload is the body of GET /api/schedule/{group}.
type Payload struct {
	Events []RawEvent `json:"events"`
}

// RawEvent is a schedule entry exactly as the backend sends it.
type RawEvent struct {
	ID            FlexString    `json:"id"`
	Title         string        `json:"title"`
	Start         string        `json:"start"`
	End           string        `json:"end,omitempty"`
	ClassName     []string      `json:"className,omitempty"`
	ExtendedProps ExtendedProps `json:"extendedProps"`
}

// ExtendedProps is the loosely typed property bag attached to raw events.
type ExtendedProps struct {
	IsCustom    FlexBool `json:"is_custom"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	// RRule marks a recurring template, e.g. a weekly lecture slot.
	RRule string `json:"rrule,omitempty"`
}

// RawTask is the subset of GET /api/tasks used for deadline entries.
type RawTask struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Deadline    *string    `json:"deadline"`
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// FlexBool decodes true/false, 0/1 and "0"/"1"/"true" into a bool.
// Anything unrecognized decodes as false rather than failing the payload.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(raw) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		n, err := strconv.ParseFloat(raw, 64)
		*b = FlexBool(err == nil && n != 0)
	}
	return nil
}

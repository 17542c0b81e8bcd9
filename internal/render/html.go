package render

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("calendar.html").ParseFS(templateFS, "templates/calendar.html"))

// PageData is everything the calendar page shows. It is built from a
// controller snapshot by the web layer.
type PageData struct {
	Grid     Grid
	Group    string
	Subgroup int
	Mode     string

	Menu     *MenuView
	Edit     *EditView
	View     *DetailView
	Confirm  *ConfirmView
	DayPanel *DayPanelView

	// Notice is a blocking message (failed save/delete); Validation is the
	// inline form message.
	Notice     string
	Validation string
	// Stale is set when the last fetch failed and the grid shows old data.
	Stale bool
}

// ActionView is a button in a menu or modal.
type ActionView struct {
	Name  string
	Label string
}

// MenuView is an open context menu anchored at the pointer.
type MenuView struct {
	Kind    string
	Date    string
	EventID string
	X, Y    int
	Actions []ActionView
}

// EditView is the prefilled form of the edit modal. Kind is "add",
// "edit-name" or "edit-time" and decides which inputs are shown.
type EditView struct {
	Kind      string
	Heading   string
	Title     string
	Type      string
	Date      string
	StartTime string
	EndTime   string
}

// DetailView is the read-only event modal.
type DetailView struct {
	Entry       Entry
	Date        string
	Description string
	Location    string
	Actions     []ActionView
}

// ConfirmView asks before a delete.
type ConfirmView struct {
	Title string
}

// DayPanelView lists every entry of one day.
type DayPanelView struct {
	Date    string
	Entries []Entry
}

// Page writes the full HTML page.
func Page(w io.Writer, data PageData) error {
	return pageTemplate.Execute(w, data)
}

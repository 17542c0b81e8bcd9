package controller

import (
	"time"

	"studycal/internal/dateutil"
	"studycal/internal/render"
)

// Page composes everything the HTML page shows from the current state.
// Only the overlay belonging to the current mode is filled in.
func (c *Controller) Page(now time.Time) render.PageData {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := &c.state
	data := render.PageData{
		Grid:       c.gridLocked(now),
		Group:      st.Group,
		Subgroup:   st.Subgroup,
		Mode:       string(st.Mode),
		Notice:     st.Notice,
		Validation: st.Validation,
		Stale:      st.LastError != "",
	}

	switch st.Mode {
	case ModeContextMenu:
		if m := st.Menu; m != nil {
			data.Menu = &render.MenuView{
				Kind:    string(m.Kind),
				Date:    m.Date,
				EventID: m.EventID,
				X:       m.X,
				Y:       m.Y,
				Actions: actionViews(m.Actions),
			}
		}
	case ModeEditModal:
		if f := st.Form; f != nil {
			data.Edit = &render.EditView{
				Kind:      string(f.Kind),
				Heading:   f.Kind.Label(),
				Title:     f.Title,
				Type:      f.Type,
				Date:      f.Date,
				StartTime: f.StartTime,
				EndTime:   f.EndTime,
			}
		}
	case ModeViewModal:
		if v := st.Viewing; v != nil {
			data.View = &render.DetailView{
				Entry:       render.EntryFor(v.Event, c.layout),
				Date:        c.dateOf(v.Event),
				Description: v.Event.Description,
				Location:    v.Event.Location,
				Actions:     actionViews(v.Actions),
			}
		}
	case ModeConfirmDelete:
		if st.EditingTarget != nil {
			if ev, ok := c.lookupLocked(st.EditingTarget.EventID); ok {
				data.Confirm = &render.ConfirmView{Title: ev.Title}
			}
		}
	case ModeDayPanel:
		if day, err := dateutil.ParseDate(st.DayPanel, c.loc); err == nil {
			data.DayPanel = &render.DayPanelView{Date: st.DayPanel, Entries: c.dayEntriesLocked(day)}
		}
	}
	return data
}

func actionViews(actions []Action) []render.ActionView {
	out := make([]render.ActionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, render.ActionView{Name: string(a), Label: a.Label()})
	}
	return out
}

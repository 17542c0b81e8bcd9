// Package controller is the calendar's interaction state machine. It owns
// the per-session state, decides which transitions are allowed and calls
// the backend through a Gateway. Nothing in here touches HTML.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"studycal/internal/dateutil"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/render"
	"studycal/internal/schedule"
)

// Gateway is the backend the controller reads from and writes to.
type Gateway interface {
	FetchSchedule(ctx context.Context, group string, subgroup int) ([]model.CalendarEvent, error)
	SaveEvent(ctx context.Context, payload model.EventPayload) error
	DeleteEvent(ctx context.Context, id string) error
	SetSubgroup(ctx context.Context, subgroup int) error
}

// TaskSource supplies read-only task deadlines merged into every fetch.
type TaskSource interface {
	FetchTasks(ctx context.Context) ([]model.CalendarEvent, error)
}

// Mode is the interaction state.
type Mode string

const (
	ModeIdle          Mode = "idle"
	ModeContextMenu   Mode = "context-menu"
	ModeEditModal     Mode = "edit-modal"
	ModeViewModal     Mode = "view-modal"
	ModeConfirmDelete Mode = "confirm-delete"
	ModeDayPanel      Mode = "day-panel"
)

// blocking reports whether m must be closed explicitly (cancel/confirm)
// before anything else can happen.
func (m Mode) blocking() bool {
	return m == ModeEditModal || m == ModeConfirmDelete
}

// MenuKind tells an empty-cell menu from an event menu.
type MenuKind string

const (
	MenuEmpty MenuKind = "empty"
	MenuEvent MenuKind = "event"
)

// Action is a menu or modal button.
type Action string

const (
	ActionAdd      Action = "add"
	ActionEditName Action = "edit-name"
	ActionEditTime Action = "edit-time"
	ActionDelete   Action = "delete"
)

var actionLabels = map[Action]string{
	ActionAdd:      "Add event",
	ActionEditName: "Edit name",
	ActionEditTime: "Edit time",
	ActionDelete:   "Delete",
}

// Label is the button text.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

var (
	ErrNoGroup          = errors.New("no group selected")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrNotEditable      = errors.New("event is not editable")
	ErrActionNotAllowed = errors.New("action not allowed here")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidSubgroup  = errors.New("invalid subgroup")
	ErrModalOpen        = errors.New("a modal is open")
	ErrNoModal          = errors.New("no edit modal is open")
	ErrNoConfirmation   = errors.New("no delete is awaiting confirmation")
	// ErrSuperseded is returned by a fetch whose response arrived after a
	// newer fetch was started. Its result is discarded.
	ErrSuperseded = errors.New("response superseded by a newer request")
)

// Menu is an open context menu.
type Menu struct {
	Kind    MenuKind `json:"kind"`
	Date    string   `json:"date"`
	EventID string   `json:"event_id,omitempty"`
	X       int      `json:"x"`
	Y       int      `json:"y"`
	Actions []Action `json:"actions"`
}

// Form is the open edit modal. Kind is the action that opened it.
type Form struct {
	Kind Action `json:"kind"`
	EventForm
}

// Viewing is the open detail modal.
type Viewing struct {
	Event   model.CalendarEvent `json:"event"`
	Actions []Action            `json:"actions,omitempty"`
}

// State is the full interaction state of one session.
type State struct {
	model.CalendarState

	Mode     Mode     `json:"mode"`
	Menu     *Menu    `json:"menu,omitempty"`
	Form     *Form    `json:"form,omitempty"`
	Viewing  *Viewing `json:"viewing,omitempty"`
	DayPanel string   `json:"day_panel,omitempty"`

	// Notice is a blocking message after a failed save/delete.
	Notice string `json:"notice,omitempty"`
	// Validation is the inline form message.
	Validation string `json:"validation,omitempty"`
	// LastError is set while the shown events are stale.
	LastError string `json:"last_error,omitempty"`

	// resume is the mode a declined delete returns to.
	resume Mode
}

// Options configures a Controller.
type Options struct {
	Group    string
	Subgroup int
	// Location is the viewer's zone. Defaults to time.Local.
	Location *time.Location
	// Tasks, when set, adds task deadlines to every fetch.
	Tasks TaskSource
	// Layout carries the per-day cap and title limit.
	Layout render.Options
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller is safe for concurrent use. The mutex guards state only;
// backend calls run without it.
type Controller struct {
	gw        Gateway
	tasks     TaskSource
	loc       *time.Location
	now       func() time.Time
	layout    render.Options
	validator *formValidator

	mu    sync.Mutex
	state State
	seq   uint64
}

// New creates a controller showing the current month.
func New(gw Gateway, opts Options) *Controller {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	subgroup := opts.Subgroup
	if !model.ValidSubgroup(subgroup) {
		subgroup = 1
	}
	layout := opts.Layout
	layout.Location = loc

	c := &Controller{
		gw:        gw,
		tasks:     opts.Tasks,
		loc:       loc,
		now:       now,
		layout:    layout,
		validator: newFormValidator(),
	}
	c.state = State{
		CalendarState: model.CalendarState{
			VisibleMonth: dateutil.MonthStart(now(), loc),
			Group:        opts.Group,
			Subgroup:     subgroup,
			Events:       []model.CalendarEvent{},
		},
		Mode: ModeIdle,
	}
	return c
}

// Location returns the viewer's zone.
func (c *Controller) Location() *time.Location {
	return c.loc
}

// Load performs the initial fetch. Without a group there is nothing to
// load; that is logged and not treated as a failure.
func (c *Controller) Load(ctx context.Context) error {
	err := c.Refresh(ctx)
	if errors.Is(err, ErrNoGroup) {
		appLog.Warn("no group selected, calendar stays empty")
		return nil
	}
	return err
}

// Refresh refetches the schedule (and task deadlines). Only the response
// of the most recently started fetch replaces the events; a failed fetch
// keeps the last known events and records LastError.
func (c *Controller) Refresh(ctx context.Context) error {
	token, group, subgroup, err := c.beginFetch()
	if err != nil {
		return err
	}

	events, err := c.gw.FetchSchedule(ctx, group, subgroup)
	if err == nil && c.tasks != nil {
		deadlines, terr := c.tasks.FetchTasks(ctx)
		if terr != nil {
			appLog.Warn("task deadlines unavailable", "err", terr)
		} else {
			events = append(events, deadlines...)
		}
	}
	return c.finishFetch(token, events, err)
}

func (c *Controller) beginFetch() (uint64, string, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Group == "" {
		return 0, "", 0, ErrNoGroup
	}
	c.seq++
	return c.seq, c.state.Group, c.state.Subgroup, nil
}

func (c *Controller) finishFetch(token uint64, events []model.CalendarEvent, fetchErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.seq {
		appLog.Debug("discarding superseded fetch", "token", token, "latest", c.seq)
		return ErrSuperseded
	}
	if fetchErr != nil {
		c.state.LastError = fetchErr.Error()
		appLog.Error("schedule fetch failed, keeping last events", fetchErr,
			"group", c.state.Group, "events", len(c.state.Events))
		return fetchErr
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	c.state.Events = events
	c.state.LastError = ""
	return nil
}

// OpenContextMenu handles a right click. An empty eventID opens the
// empty-cell menu for date. An editable event opens the event menu; a
// read-only event opens its detail modal instead, with no actions.
func (c *Controller) OpenContextMenu(date, eventID string, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Mode.blocking() {
		return ErrModalOpen
	}

	if eventID == "" {
		if _, err := dateutil.ParseDate(date, c.loc); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		c.resetLocked()
		c.state.Mode = ModeContextMenu
		c.state.Menu = &Menu{Kind: MenuEmpty, Date: date, X: x, Y: y, Actions: []Action{ActionAdd}}
		c.state.EditingTarget = &model.EditTarget{Date: date}
		return nil
	}

	ev, ok := c.lookupLocked(eventID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventID)
	}
	if !ev.Editable {
		c.viewLocked(ev)
		return nil
	}

	c.resetLocked()
	evDate := c.dateOf(ev)
	c.state.Mode = ModeContextMenu
	c.state.Menu = &Menu{
		Kind:    MenuEvent,
		Date:    evDate,
		EventID: ev.Key(),
		X:       x,
		Y:       y,
		Actions: eventActions(ev),
	}
	c.state.EditingTarget = &model.EditTarget{EventID: ev.Key(), Date: evDate}
	return nil
}

// OpenEvent handles a left click on an event and shows its details.
func (c *Controller) OpenEvent(eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Mode.blocking() {
		return ErrModalOpen
	}
	ev, ok := c.lookupLocked(eventID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventID)
	}
	c.viewLocked(ev)
	return nil
}

func (c *Controller) viewLocked(ev model.CalendarEvent) {
	c.resetLocked()
	c.state.Mode = ModeViewModal
	c.state.Viewing = &Viewing{Event: ev, Actions: eventActions(ev)}
	c.state.EditingTarget = &model.EditTarget{EventID: ev.Key(), Date: c.dateOf(ev)}
}

// eventActions is the only place actions are granted; read-only events
// get none.
func eventActions(ev model.CalendarEvent) []Action {
	if !ev.Editable {
		return nil
	}
	return []Action{ActionEditName, ActionEditTime, ActionDelete}
}

// Dismiss closes a menu, detail modal or day panel. Edit and confirm
// modals ignore it and need Cancel or Confirm.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode.blocking() {
		return
	}
	c.resetLocked()
}

// ChooseAction runs a button of the open menu or detail modal. Only the
// actions offered there are accepted.
func (c *Controller) ChooseAction(a Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var offered []Action
	switch c.state.Mode {
	case ModeContextMenu:
		offered = c.state.Menu.Actions
	case ModeViewModal:
		offered = c.state.Viewing.Actions
	}
	if !slices.Contains(offered, a) || c.state.EditingTarget == nil {
		return fmt.Errorf("%w: %s in %s", ErrActionNotAllowed, a, c.state.Mode)
	}
	target := *c.state.EditingTarget

	switch a {
	case ActionAdd:
		c.resetLocked()
		c.state.Mode = ModeEditModal
		c.state.Form = &Form{Kind: a, EventForm: EventForm{Date: target.Date, Type: "other"}}
		c.state.EditingTarget = &model.EditTarget{Date: target.Date}

	case ActionEditName, ActionEditTime:
		ev, ok := c.lookupLocked(target.EventID)
		if !ok {
			c.resetLocked()
			return fmt.Errorf("%w: %s", ErrUnknownEvent, target.EventID)
		}
		if !ev.Editable {
			return ErrNotEditable
		}
		c.resetLocked()
		c.state.Mode = ModeEditModal
		c.state.Form = &Form{Kind: a, EventForm: c.formFor(ev)}
		c.state.EditingTarget = &target

	case ActionDelete:
		c.state.resume = c.state.Mode
		c.state.Mode = ModeConfirmDelete
		c.state.Notice = ""
	}
	return nil
}

func (c *Controller) formFor(ev model.CalendarEvent) EventForm {
	start := ev.Start.In(c.loc)
	f := EventForm{
		Title: ev.Title,
		Type:  ev.Category.PayloadType(),
		Date:  dateutil.FormatDate(start),
	}
	if !ev.AllDay {
		f.StartTime = dateutil.FormatClock(start)
		if ev.HasEnd() {
			f.EndTime = dateutil.FormatClock(ev.End.In(c.loc))
		}
	}
	return f
}

// mergeForm applies only the inputs the modal shows: the title for
// edit-name, the times for edit-time, everything for add.
func mergeForm(kind Action, base, in EventForm) EventForm {
	switch kind {
	case ActionEditName:
		base.Title = in.Title
		return base
	case ActionEditTime:
		base.StartTime, base.EndTime = in.StartTime, in.EndTime
		return base
	}
	if in.Date == "" {
		in.Date = base.Date
	}
	if in.Type == "" {
		in.Type = base.Type
	}
	return in
}

// Submit validates the edit modal and saves it. A form that fails local
// validation never reaches the backend. On a failed save the modal stays
// open with a notice; on success the calendar is refetched.
func (c *Controller) Submit(ctx context.Context, in EventForm) error {
	payload, err := c.prepareSave(in)
	if err != nil {
		return err
	}

	if err := c.gw.SaveEvent(ctx, payload); err != nil {
		c.setNotice(ModeEditModal, "Could not save the event: "+err.Error())
		return err
	}
	appLog.Info("event saved", "id", payload.ID, "title", payload.Title, "date", payload.Date)

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.refreshAfterMutation(ctx)
	return nil
}

func (c *Controller) prepareSave(in EventForm) (model.EventPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Mode != ModeEditModal || c.state.Form == nil {
		return model.EventPayload{}, ErrNoModal
	}
	form := c.state.Form
	merged := mergeForm(form.Kind, form.EventForm, in.trimmed())
	form.EventForm = merged
	c.state.Notice = ""

	if err := c.validator.Check(merged); err != nil {
		c.state.Validation = err.Error()
		appLog.Debug("event form rejected", "err", err)
		return model.EventPayload{}, err
	}
	c.state.Validation = ""

	if c.state.Group == "" {
		c.state.Notice = ErrNoGroup.Error()
		return model.EventPayload{}, ErrNoGroup
	}

	var id string
	if form.Kind != ActionAdd {
		target := c.state.EditingTarget
		if target == nil {
			return model.EventPayload{}, ErrUnknownEvent
		}
		ev, ok := c.lookupLocked(target.EventID)
		if !ok {
			return model.EventPayload{}, fmt.Errorf("%w: %s", ErrUnknownEvent, target.EventID)
		}
		if !ev.Editable {
			return model.EventPayload{}, ErrNotEditable
		}
		id = ev.ID
		if ev.Recurrence != "" {
			merged = c.seriesForm(form.Kind, ev, merged)
		}
	}
	return c.payloadFor(merged, id, c.state.Group)
}

// seriesForm rebases an edit made on one occurrence onto the series
// template, so the series keeps its first date. Only the field the modal
// edits is taken from the form.
func (c *Controller) seriesForm(kind Action, occ model.CalendarEvent, edited EventForm) EventForm {
	tmpl := occ
	tmpl.InstanceKey = ""
	if t, ok := c.state.FindEvent(tmpl.Key()); ok {
		tmpl = t
	}
	base := c.formFor(tmpl)
	switch kind {
	case ActionEditName:
		base.Title = edited.Title
	case ActionEditTime:
		base.StartTime, base.EndTime = edited.StartTime, edited.EndTime
	}
	return base
}

// payloadFor converts the form's local date and times into the backend's
// UTC date and clock values.
func (c *Controller) payloadFor(f EventForm, id, group string) (model.EventPayload, error) {
	p := model.EventPayload{
		ID:        id,
		GroupName: group,
		Title:     f.Title,
		Type:      f.Type,
		Date:      f.Date,
	}
	if p.Type == "" {
		p.Type = "other"
	}
	if f.StartTime == "" {
		return p, nil
	}

	start, err := time.ParseInLocation(dateutil.DateLayout+" "+dateutil.ClockLayout, f.Date+" "+f.StartTime, c.loc)
	if err != nil {
		return model.EventPayload{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	start = start.UTC()
	p.Date = dateutil.FormatDate(start)
	p.StartTime = dateutil.FormatClock(start)

	if f.EndTime != "" {
		end, err := time.ParseInLocation(dateutil.DateLayout+" "+dateutil.ClockLayout, f.Date+" "+f.EndTime, c.loc)
		if err != nil {
			return model.EventPayload{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
		p.EndTime = dateutil.FormatClock(end.UTC())
	}
	return p, nil
}

// Cancel closes the edit or confirm modal without any backend call.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Confirm answers the delete confirmation. Declining returns to the menu
// or modal the delete came from and sends nothing.
func (c *Controller) Confirm(ctx context.Context, yes bool) error {
	ev, err := c.prepareDelete(yes)
	if err != nil || !yes {
		return err
	}

	if err := c.gw.DeleteEvent(ctx, ev.ID); err != nil {
		c.setNotice(ModeConfirmDelete, "Could not delete the event: "+err.Error())
		return err
	}
	appLog.Info("event deleted", "id", ev.ID, "title", ev.Title)

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.refreshAfterMutation(ctx)
	return nil
}

func (c *Controller) prepareDelete(yes bool) (model.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Mode != ModeConfirmDelete {
		return model.CalendarEvent{}, ErrNoConfirmation
	}
	if !yes {
		c.state.Mode = c.state.resume
		c.state.resume = ""
		c.state.Notice = ""
		return model.CalendarEvent{}, nil
	}

	target := c.state.EditingTarget
	if target == nil {
		c.resetLocked()
		return model.CalendarEvent{}, ErrUnknownEvent
	}
	ev, ok := c.lookupLocked(target.EventID)
	if !ok {
		c.resetLocked()
		return model.CalendarEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, target.EventID)
	}
	if !ev.Editable {
		return model.CalendarEvent{}, ErrNotEditable
	}
	return ev, nil
}

// SwitchSubgroup stores the new subgroup preference and refetches. The
// toggle is optimistic; the refetch runs whether or not the preference
// was saved, so the view always matches the backend.
func (c *Controller) SwitchSubgroup(ctx context.Context, n int) error {
	if !model.ValidSubgroup(n) {
		return fmt.Errorf("%w: %d", ErrInvalidSubgroup, n)
	}

	c.mu.Lock()
	if c.state.Mode.blocking() {
		c.mu.Unlock()
		return ErrModalOpen
	}
	if c.state.Subgroup == n {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	c.state.Subgroup = n
	c.mu.Unlock()

	setErr := c.gw.SetSubgroup(ctx, n)
	if setErr != nil {
		c.setNotice(ModeIdle, "Could not save the subgroup preference")
	}

	fetchErr := c.Refresh(ctx)
	if errors.Is(fetchErr, ErrSuperseded) {
		fetchErr = nil
	}
	return errors.Join(setErr, fetchErr)
}

// ShowDay opens the panel with every entry of date.
func (c *Controller) ShowDay(date string) error {
	if _, err := dateutil.ParseDate(date, c.loc); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode.blocking() {
		return ErrModalOpen
	}
	c.resetLocked()
	c.state.Mode = ModeDayPanel
	c.state.DayPanel = date
	return nil
}

// PrevMonth shows the previous month.
func (c *Controller) PrevMonth() error { return c.moveMonth(-1) }

// NextMonth shows the next month.
func (c *Controller) NextMonth() error { return c.moveMonth(1) }

// Today jumps back to the current month.
func (c *Controller) Today() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode.blocking() {
		return ErrModalOpen
	}
	c.resetLocked()
	c.state.VisibleMonth = dateutil.MonthStart(c.now(), c.loc)
	return nil
}

func (c *Controller) moveMonth(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode.blocking() {
		return ErrModalOpen
	}
	c.resetLocked()
	c.state.VisibleMonth = dateutil.AddMonths(c.state.VisibleMonth, n)
	return nil
}

// Snapshot returns a deep copy of the state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Events returns a copy of the loaded events, recurring ones as templates.
func (c *Controller) Events() []model.CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.state.Events)
}

// Grid renders the visible month.
func (c *Controller) Grid(now time.Time) render.Grid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gridLocked(now)
}

func (c *Controller) gridLocked(now time.Time) render.Grid {
	month := c.state.VisibleMonth
	return render.Render(month, c.expandedLocked(month), now, c.layout)
}

// DayEntries lists every entry of date, including recurring occurrences.
func (c *Controller) DayEntries(date string) ([]render.Entry, error) {
	day, err := dateutil.ParseDate(date, c.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dayEntriesLocked(day), nil
}

func (c *Controller) dayEntriesLocked(day time.Time) []render.Entry {
	events := c.expandedLocked(dateutil.MonthStart(day, c.loc))
	return render.DayEntries(dateutil.FormatDate(day), events, c.layout)
}

// expandedLocked returns the events with recurring templates replaced by
// their occurrences in the month starting at monthStart.
func (c *Controller) expandedLocked(monthStart time.Time) []model.CalendarEvent {
	out, err := schedule.Expand(c.state.Events, schedule.ExpandOptions{
		From:     monthStart,
		To:       dateutil.AddMonths(monthStart, 1).Add(-time.Nanosecond),
		Location: c.loc,
	})
	if err != nil {
		appLog.Error("expand recurrences", err)
		return c.state.Events
	}
	return out
}

// lookupLocked finds an event by rendered key or backend ID among the
// visible month's occurrences, then among the raw events.
func (c *Controller) lookupLocked(id string) (model.CalendarEvent, bool) {
	visible := model.CalendarState{Events: c.expandedLocked(c.state.VisibleMonth)}
	if ev, ok := visible.FindEvent(id); ok {
		return ev, true
	}
	return c.state.FindEvent(id)
}

func (c *Controller) dateOf(ev model.CalendarEvent) string {
	return dateutil.FormatDate(ev.Start.In(c.loc))
}

// setNotice records msg if the session is still in mode.
func (c *Controller) setNotice(mode Mode, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode == mode {
		c.state.Notice = msg
	}
}

// refreshAfterMutation refetches after a save or delete. A failure here is
// already recorded in LastError and does not undo the mutation.
func (c *Controller) refreshAfterMutation(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		appLog.Warn("refetch after change failed", "err", err)
	}
}

// resetLocked returns to Idle and clears everything tied to the closed
// overlay. Events, month, group and LastError are kept.
func (c *Controller) resetLocked() {
	c.state.Mode = ModeIdle
	c.state.Menu = nil
	c.state.Form = nil
	c.state.Viewing = nil
	c.state.DayPanel = ""
	c.state.Notice = ""
	c.state.Validation = ""
	c.state.EditingTarget = nil
	c.state.resume = ""
}

func (s State) clone() State {
	out := s
	out.Events = slices.Clone(s.Events)
	if s.EditingTarget != nil {
		t := *s.EditingTarget
		out.EditingTarget = &t
	}
	if s.Menu != nil {
		m := *s.Menu
		m.Actions = slices.Clone(s.Menu.Actions)
		out.Menu = &m
	}
	if s.Form != nil {
		f := *s.Form
		out.Form = &f
	}
	if s.Viewing != nil {
		v := *s.Viewing
		v.Actions = slices.Clone(s.Viewing.Actions)
		out.Viewing = &v
	}
	return out
}

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/model"
)

type fakeGateway struct {
	mu sync.Mutex

	events      []model.CalendarEvent
	fetchErr    error
	saveErr     error
	deleteErr   error
	subgroupErr error

	fetches   []int
	saved     []model.EventPayload
	deleted   []string
	subgroups []int
}

func (f *fakeGateway) FetchSchedule(ctx context.Context, group string, subgroup int) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, subgroup)
	if f.fetchErr != nil {
		return []model.CalendarEvent{}, f.fetchErr
	}
	return append([]model.CalendarEvent(nil), f.events...), nil
}

func (f *fakeGateway) SaveEvent(ctx context.Context, p model.EventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeGateway) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeGateway) SetSubgroup(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subgroups = append(f.subgroups, n)
	return f.subgroupErr
}

type fakeTasks struct {
	events []model.CalendarEvent
	err    error
}

func (f fakeTasks) FetchTasks(ctx context.Context) ([]model.CalendarEvent, error) {
	return f.events, f.err
}

var (
	march12 = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	lecture = model.CalendarEvent{
		ID: "1", Origin: model.OriginUniversity, Title: "Algorithms", Category: model.CategoryLecture,
		Start: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
	}
	studyGroup = model.CalendarEvent{
		ID: "7", Origin: model.OriginCustom, Title: "Study group", Category: model.CategoryCustomOther,
		Start:    time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Editable: true,
	}
)

func newTestController(t *testing.T, gw *fakeGateway, loc *time.Location) *Controller {
	t.Helper()
	if loc == nil {
		loc = time.UTC
	}
	c := New(gw, Options{
		Group:    "CS-101",
		Subgroup: 1,
		Location: loc,
		Now:      func() time.Time { return march12 },
	})
	require.NoError(t, c.Load(context.Background()))
	return c
}

func cellFor(t *testing.T, c *Controller, date string) []string {
	t.Helper()
	for _, cell := range c.Grid(march12).Cells {
		if cell.Date == date {
			var ids []string
			for _, e := range cell.Entries {
				ids = append(ids, e.EventID)
			}
			return ids
		}
	}
	t.Fatalf("no cell for %s", date)
	return nil
}

func TestScheduleScenario(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{lecture, studyGroup}}
	c := newTestController(t, gw, nil)

	assert.Equal(t, []string{"custom:7", "university:1"}, cellFor(t, c, "2025-03-10"))

	for _, cell := range c.Grid(march12).Cells {
		for _, e := range cell.Entries {
			if e.EventID == "university:1" {
				assert.False(t, e.Editable)
			}
		}
	}
	assert.Equal(t, []int{1}, gw.fetches)
}

func TestEmptyTitleNeverReachesGateway(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("2025-03-10", "", 100, 200))
	require.NoError(t, c.ChooseAction(ActionAdd))

	err := c.Submit(context.Background(), EventForm{Title: "   ", Date: "2025-03-10"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "title", verr.Fields[0].Field)
	assert.Equal(t, "this field is required", verr.Fields[0].Message)

	st := c.Snapshot()
	assert.Equal(t, ModeEditModal, st.Mode)
	assert.Equal(t, "title: this field is required", st.Validation)
	assert.Empty(t, gw.saved)
}

func TestValidationRejectsTimes(t *testing.T) {
	v := newFormValidator()

	err := v.Check(EventForm{Title: "x", Date: "2025-03-10", StartTime: "10:00", EndTime: "09:00"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "end_time", verr.Fields[0].Field)

	err = v.Check(EventForm{Title: "x", Date: "2025-03-10", EndTime: "09:00"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "start_time", verr.Fields[0].Field)

	assert.Error(t, v.Check(EventForm{Title: "x", Date: "10.03.2025"}))
	assert.Error(t, v.Check(EventForm{Title: "x", Date: "2025-03-10", Type: "party"}))
	assert.NoError(t, v.Check(EventForm{Title: "x", Date: "2025-03-10", StartTime: "09:00", EndTime: "09:00"}))
}

func TestReadOnlyEventsOfferNoActions(t *testing.T) {
	deadline := model.CalendarEvent{
		ID: "4", Origin: model.OriginTaskDeadline, Title: "Essay", Category: model.CategoryTaskDeadline,
		Start: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC),
	}
	gw := &fakeGateway{events: []model.CalendarEvent{lecture, deadline}}
	c := newTestController(t, gw, nil)

	for _, id := range []string{"university:1", "task-deadline:4"} {
		require.NoError(t, c.OpenContextMenu("", id, 0, 0))
		st := c.Snapshot()
		assert.Equal(t, ModeViewModal, st.Mode, id)
		assert.Nil(t, st.Menu)
		assert.Empty(t, st.Viewing.Actions)

		for _, a := range []Action{ActionEditName, ActionEditTime, ActionDelete} {
			assert.ErrorIs(t, c.ChooseAction(a), ErrActionNotAllowed)
		}

		require.NoError(t, c.OpenEvent(id))
		assert.Empty(t, c.Snapshot().Viewing.Actions)
		assert.Empty(t, c.Page(march12).View.Actions)
		c.Dismiss()
	}
}

func TestEditableEventMenu(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("2025-03-10", "custom:7", 40, 50))
	st := c.Snapshot()
	assert.Equal(t, ModeContextMenu, st.Mode)
	assert.Equal(t, MenuEvent, st.Menu.Kind)
	assert.Equal(t, []Action{ActionEditName, ActionEditTime, ActionDelete}, st.Menu.Actions)
	assert.Equal(t, &model.EditTarget{EventID: "custom:7", Date: "2025-03-10"}, st.EditingTarget)

	assert.ErrorIs(t, c.ChooseAction(ActionAdd), ErrActionNotAllowed)

	page := c.Page(march12)
	require.NotNil(t, page.Menu)
	assert.Equal(t, "event", page.Menu.Kind)
	assert.Len(t, page.Menu.Actions, 3)
}

func TestDeclinedDeleteSendsNothing(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("", "custom:7", 0, 0))
	require.NoError(t, c.ChooseAction(ActionDelete))
	assert.Equal(t, ModeConfirmDelete, c.Snapshot().Mode)
	assert.Equal(t, "Study group", c.Page(march12).Confirm.Title)

	require.NoError(t, c.Confirm(context.Background(), false))
	st := c.Snapshot()
	assert.Equal(t, ModeContextMenu, st.Mode)
	assert.Equal(t, "custom:7", st.Menu.EventID)
	assert.Empty(t, gw.deleted)

	require.NoError(t, c.ChooseAction(ActionDelete))
	require.NoError(t, c.Confirm(context.Background(), true))
	assert.Equal(t, []string{"7"}, gw.deleted)
	assert.Equal(t, ModeIdle, c.Snapshot().Mode)
	assert.Len(t, gw.fetches, 2, "refetch after delete")

	assert.ErrorIs(t, c.Confirm(context.Background(), true), ErrNoConfirmation)
}

func TestDeleteFailureKeepsConfirmation(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}, deleteErr: errors.New("boom")}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenEvent("custom:7"))
	require.NoError(t, c.ChooseAction(ActionDelete))
	assert.Error(t, c.Confirm(context.Background(), true))

	st := c.Snapshot()
	assert.Equal(t, ModeConfirmDelete, st.Mode)
	assert.Contains(t, st.Notice, "Could not delete the event")
	assert.Len(t, gw.fetches, 1)
}

func TestSwitchSubgroup(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw, nil)
	gw.fetches = nil

	require.NoError(t, c.SwitchSubgroup(context.Background(), 2))
	assert.Equal(t, []int{2}, gw.subgroups)
	assert.Equal(t, []int{2}, gw.fetches)
	assert.Equal(t, 2, c.Snapshot().Subgroup)

	require.NoError(t, c.SwitchSubgroup(context.Background(), 2))
	assert.Len(t, gw.subgroups, 1, "same subgroup is a no-op")

	assert.ErrorIs(t, c.SwitchSubgroup(context.Background(), 3), ErrInvalidSubgroup)
	assert.Len(t, gw.subgroups, 1)
}

func TestSwitchSubgroupRefetchesAfterFailure(t *testing.T) {
	gw := &fakeGateway{subgroupErr: errors.New("offline")}
	c := newTestController(t, gw, nil)
	gw.fetches = nil

	err := c.SwitchSubgroup(context.Background(), 2)
	assert.Error(t, err)
	assert.Equal(t, []int{2}, gw.subgroups)
	assert.Equal(t, []int{2}, gw.fetches)
	assert.Equal(t, "Could not save the subgroup preference", c.Snapshot().Notice)
}

func TestSubmitAddConvertsToUTC(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*60*60)
	gw := &fakeGateway{}
	c := newTestController(t, gw, kyiv)

	require.NoError(t, c.OpenContextMenu("2025-03-10", "", 0, 0))
	require.NoError(t, c.ChooseAction(ActionAdd))
	assert.Equal(t, "2025-03-10", c.Snapshot().Form.Date)

	require.NoError(t, c.Submit(context.Background(), EventForm{
		Title: " Study ", StartTime: "01:00", EndTime: "02:30",
	}))

	require.Len(t, gw.saved, 1)
	assert.Equal(t, model.EventPayload{
		GroupName: "CS-101",
		Title:     "Study",
		Type:      "other",
		Date:      "2025-03-09",
		StartTime: "23:00",
		EndTime:   "00:30",
	}, gw.saved[0])

	st := c.Snapshot()
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Nil(t, st.EditingTarget)
	assert.Len(t, gw.fetches, 2)
}

func TestSubmitEditNameOnlyChangesTitle(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("", "custom:7", 0, 0))
	require.NoError(t, c.ChooseAction(ActionEditName))
	assert.Equal(t, "Study group", c.Snapshot().Form.Title)

	require.NoError(t, c.Submit(context.Background(), EventForm{Title: "Renamed", StartTime: "23:00"}))
	require.Len(t, gw.saved, 1)
	p := gw.saved[0]
	assert.Equal(t, "7", p.ID)
	assert.Equal(t, "Renamed", p.Title)
	assert.Equal(t, "08:00", p.StartTime)
	assert.Equal(t, "09:00", p.EndTime)
}

func TestSaveFailureKeepsModalOpen(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}, saveErr: errors.New("503")}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("", "custom:7", 0, 0))
	require.NoError(t, c.ChooseAction(ActionEditTime))
	assert.Error(t, c.Submit(context.Background(), EventForm{StartTime: "10:00", EndTime: "11:00"}))

	st := c.Snapshot()
	assert.Equal(t, ModeEditModal, st.Mode)
	assert.Contains(t, st.Notice, "Could not save the event")
	assert.Equal(t, "10:00", st.Form.StartTime, "input is kept")
}

func TestCancelDiscardsWithoutNetwork(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}}
	c := newTestController(t, gw, nil)

	require.NoError(t, c.OpenContextMenu("", "custom:7", 0, 0))
	require.NoError(t, c.ChooseAction(ActionEditName))
	assert.ErrorIs(t, c.OpenContextMenu("2025-03-11", "", 0, 0), ErrModalOpen)
	c.Dismiss()
	assert.Equal(t, ModeEditModal, c.Snapshot().Mode, "dismiss does not close a modal")

	c.Cancel()
	st := c.Snapshot()
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Nil(t, st.Form)
	assert.Nil(t, st.EditingTarget)
	assert.Empty(t, gw.saved)
	assert.Len(t, gw.fetches, 1)

	assert.ErrorIs(t, c.Submit(context.Background(), EventForm{Title: "x"}), ErrNoModal)
}

func TestRefreshKeepsEventsOnFailure(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{lecture}}
	c := newTestController(t, gw, nil)

	gw.fetchErr = errors.New("backend down")
	assert.Error(t, c.Refresh(context.Background()))

	st := c.Snapshot()
	assert.Len(t, st.Events, 1)
	assert.Equal(t, "backend down", st.LastError)
	assert.True(t, c.Page(march12).Stale)

	gw.fetchErr = nil
	require.NoError(t, c.Refresh(context.Background()))
	assert.Empty(t, c.Snapshot().LastError)
}

func TestOnlyLatestFetchApplies(t *testing.T) {
	c := New(&fakeGateway{}, Options{Group: "CS-101", Location: time.UTC, Now: func() time.Time { return march12 }})

	first, _, _, err := c.beginFetch()
	require.NoError(t, err)
	second, _, _, err := c.beginFetch()
	require.NoError(t, err)

	require.NoError(t, c.finishFetch(second, []model.CalendarEvent{studyGroup}, nil))
	assert.ErrorIs(t, c.finishFetch(first, []model.CalendarEvent{lecture}, nil), ErrSuperseded)

	events := c.Snapshot().Events
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].ID)
}

func TestNoGroup(t *testing.T) {
	gw := &fakeGateway{}
	c := New(gw, Options{Location: time.UTC})

	assert.NoError(t, c.Load(context.Background()))
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoGroup)
	assert.Empty(t, gw.fetches)
}

func TestTaskDeadlinesMerged(t *testing.T) {
	deadline := model.CalendarEvent{
		ID: "4", Origin: model.OriginTaskDeadline, Title: "Essay", Category: model.CategoryTaskDeadline,
		Start: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC),
	}
	gw := &fakeGateway{events: []model.CalendarEvent{lecture}}
	c := New(gw, Options{
		Group:    "CS-101",
		Location: time.UTC,
		Tasks:    fakeTasks{events: []model.CalendarEvent{deadline}},
		Now:      func() time.Time { return march12 },
	})
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Snapshot().Events, 2)

	c.tasks = fakeTasks{err: errors.New("tasks down")}
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Snapshot().Events, 1, "schedule still applies")
}

func TestMonthNavigation(t *testing.T) {
	c := newTestController(t, &fakeGateway{}, nil)

	require.NoError(t, c.NextMonth())
	assert.Equal(t, time.April, c.Snapshot().VisibleMonth.Month())
	require.NoError(t, c.PrevMonth())
	require.NoError(t, c.PrevMonth())
	assert.Equal(t, time.February, c.Snapshot().VisibleMonth.Month())
	assert.Equal(t, "February 2025", c.Grid(march12).Label)

	require.NoError(t, c.Today())
	assert.Equal(t, time.March, c.Snapshot().VisibleMonth.Month())
}

func TestRecurringOccurrencesAreAddressable(t *testing.T) {
	weekly := studyGroup
	weekly.Recurrence = "FREQ=WEEKLY;COUNT=4"
	weekly.Start = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	weekly.End = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	gw := &fakeGateway{events: []model.CalendarEvent{weekly}}
	c := newTestController(t, gw, nil)

	ids := cellFor(t, c, "2025-03-17")
	require.Len(t, ids, 1)
	assert.Equal(t, "custom:7@2025-03-17T08:00:00Z", ids[0])

	require.NoError(t, c.OpenContextMenu("", ids[0], 0, 0))
	assert.Equal(t, "2025-03-17", c.Snapshot().Menu.Date)

	require.NoError(t, c.ChooseAction(ActionDelete))
	require.NoError(t, c.Confirm(context.Background(), true))
	assert.Equal(t, []string{"7"}, gw.deleted, "deletes address the series")
}

func TestOccurrenceEditsKeepSeriesStart(t *testing.T) {
	weekly := studyGroup
	weekly.Recurrence = "FREQ=WEEKLY;COUNT=4"
	weekly.Start = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	weekly.End = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	gw := &fakeGateway{events: []model.CalendarEvent{weekly}}
	c := newTestController(t, gw, nil)
	ctx := context.Background()

	occurrence := "custom:7@2025-03-17T08:00:00Z"
	require.NoError(t, c.OpenContextMenu("", occurrence, 0, 0))
	require.NoError(t, c.ChooseAction(ActionEditName))
	assert.Equal(t, "2025-03-17", c.Snapshot().Form.Date)
	require.NoError(t, c.Submit(ctx, EventForm{Title: "Renamed"}))

	require.NoError(t, c.OpenContextMenu("", occurrence, 0, 0))
	require.NoError(t, c.ChooseAction(ActionEditTime))
	require.NoError(t, c.Submit(ctx, EventForm{StartTime: "10:00", EndTime: "11:30"}))

	require.Len(t, gw.saved, 2)
	renamed, moved := gw.saved[0], gw.saved[1]

	assert.Equal(t, "7", renamed.ID)
	assert.Equal(t, "Renamed", renamed.Title)
	assert.Equal(t, "2025-03-03", renamed.Date)
	assert.Equal(t, "08:00", renamed.StartTime)
	assert.Equal(t, "09:00", renamed.EndTime)

	assert.Equal(t, "Study group", moved.Title)
	assert.Equal(t, "2025-03-03", moved.Date)
	assert.Equal(t, "10:00", moved.StartTime)
	assert.Equal(t, "11:30", moved.EndTime)
}

func TestShowDay(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{lecture, studyGroup}}
	c := newTestController(t, gw, nil)

	assert.ErrorIs(t, c.ShowDay("10/03/2025"), ErrInvalidDate)
	require.NoError(t, c.ShowDay("2025-03-10"))

	page := c.Page(march12)
	require.NotNil(t, page.DayPanel)
	require.Len(t, page.DayPanel.Entries, 2)
	assert.Equal(t, "Study group", page.DayPanel.Entries[0].Title)

	entries, err := c.DayEntries("2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	gw := &fakeGateway{events: []model.CalendarEvent{studyGroup}}
	c := newTestController(t, gw, nil)
	require.NoError(t, c.OpenContextMenu("", "custom:7", 0, 0))

	st := c.Snapshot()
	st.Events[0].Title = "mutated"
	st.Menu.Actions[0] = ActionAdd
	st.EditingTarget.Date = "1999-01-01"

	again := c.Snapshot()
	assert.Equal(t, "Study group", again.Events[0].Title)
	assert.Equal(t, ActionEditName, again.Menu.Actions[0])
	assert.Equal(t, "2025-03-10", again.EditingTarget.Date)
}

package client

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

var ErrNotReady = errors.New("form is not ready")

// Navigator moves the UI to another route.
type Navigator interface {
	Push(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Push(path string) { f(path) }

type FormAPI interface {
	GetScheduleByID(ctx context.Context, id string) (*apis.Schedule, error)
	GetReportGroups(ctx context.Context) ([]*apis.ReportGroup, error)
	CreateSchedule(ctx context.Context, s *apis.Schedule) (*apis.Schedule, error)
	ReplaceSchedule(ctx context.Context, s *apis.Schedule) (*apis.Schedule, error)
}

// ScheduleForm is the create/edit page. In edit mode it stays unready until
// the schedule has been fetched.
type ScheduleForm struct {
	API       FormAPI
	Navigator Navigator
	// PanelDetails are the panels available on the page.
	PanelDetails []*apis.PanelDetail
	ScheduleID   string

	mutex        sync.Mutex
	ready        bool
	values       *apis.Schedule
	reportGroups []*apis.ReportGroup
}

func NewScheduleForm(api FormAPI, navigator Navigator, panelDetails []*apis.PanelDetail, scheduleID string) *ScheduleForm {
	return &ScheduleForm{
		API:          api,
		Navigator:    navigator,
		PanelDetails: panelDetails,
		ScheduleID:   scheduleID,
		reportGroups: apis.NewReportGroups(),
	}
}

// Load fetches the report groups once and, in edit mode, the schedule. A
// failed schedule fetch redirects to the schedule list.
func (f *ScheduleForm) Load(ctx context.Context) error {
	groups, err := f.API.GetReportGroups(ctx)
	if err != nil {
		logrus.Warnf("[Client] Failed to load report groups: %v", err)
		groups = apis.NewReportGroups()
	}

	f.mutex.Lock()
	f.reportGroups = groups
	f.mutex.Unlock()

	if f.ScheduleID == "" {
		f.mutex.Lock()
		f.values = apis.NewSchedule()
		f.ready = true
		f.mutex.Unlock()
		return nil
	}

	s, err := f.API.GetScheduleByID(ctx, f.ScheduleID)
	if err != nil {
		logrus.Errorf("[Client] Failed to load schedule %s: %v", f.ScheduleID, err)
		f.toSchedules()
		return err
	}

	f.mutex.Lock()
	f.values = s
	f.ready = true
	f.mutex.Unlock()
	return nil
}

func (f *ScheduleForm) Ready() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.ready
}

// Values returns a copy of the form's initial values, or nil before Load.
func (f *ScheduleForm) Values() *apis.Schedule {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.values == nil {
		return nil
	}
	return f.values.Clone()
}

func (f *ScheduleForm) ReportGroups() []*apis.ReportGroup {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append(apis.NewReportGroups(), f.reportGroups...)
}

// Submit attaches the details of the selected panels and saves the schedule,
// then returns to the schedule list.
func (f *ScheduleForm) Submit(ctx context.Context, values *apis.Schedule) (*apis.Schedule, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}

	s := values.Clone()
	s.PanelDetails = s.SelectPanelDetails(f.PanelDetails)

	var saved *apis.Schedule
	var err error
	if f.ScheduleID == "" {
		s.ID = ""
		saved, err = f.API.CreateSchedule(ctx, s)
	} else {
		s.ID = f.ScheduleID
		saved, err = f.API.ReplaceSchedule(ctx, s)
	}
	if err != nil {
		return nil, err
	}

	f.toSchedules()
	return saved, nil
}

func (f *ScheduleForm) toSchedules() {
	if f.Navigator != nil {
		f.Navigator.Push(common.SchedulesRoute())
	}
}

package client

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

type ScheduleAPI interface {
	UpdateSchedule(ctx context.Context, id string, key apis.ScheduleKey, value interface{}) (*apis.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

type DeleteState int

const (
	DeleteIdle DeleteState = iota
	DeleteConfirmPending
	DeleteDone
)

func (s DeleteState) String() string {
	switch s {
	case DeleteConfirmPending:
		return "ConfirmPending"
	case DeleteDone:
		return "Deleted"
	}
	return "Idle"
}

// ScheduleEditor backs the schedule modal. Edits land on the local copy at
// once and reach the backend in the background; a failed edit is reported to
// OnError and left in place.
type ScheduleEditor struct {
	API       ScheduleAPI
	Cache     *QueryCache
	Navigator Navigator
	OnClose   func()
	OnError   func(err error)
	Timeout   time.Duration

	mutex    sync.Mutex
	schedule *apis.Schedule
	state    DeleteState
	wg       sync.WaitGroup
}

func NewScheduleEditor(api ScheduleAPI, cache *QueryCache, schedule *apis.Schedule) *ScheduleEditor {
	return &ScheduleEditor{
		API:      api,
		Cache:    cache,
		Timeout:  30 * time.Second,
		schedule: schedule.Clone(),
	}
}

// Schedule returns a copy of the local schedule.
func (e *ScheduleEditor) Schedule() *apis.Schedule {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.schedule.Clone()
}

// Update changes one field locally and sends the change to the backend
// without waiting. Only an invalid key or value fails synchronously.
func (e *ScheduleEditor) Update(key apis.ScheduleKey, value interface{}) error {
	e.mutex.Lock()
	if err := e.schedule.Set(key, value); err != nil {
		e.mutex.Unlock()
		return err
	}
	id := e.schedule.ID
	e.mutex.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
		defer cancel()

		if _, err := e.API.UpdateSchedule(ctx, id, key, value); err != nil {
			logrus.Errorf("[Client] Failed to update %s of schedule %s: %v", key, id, err)
			if e.OnError != nil {
				e.OnError(err)
			}
			return
		}

		e.refetch(ctx)
	}()

	return nil
}

func (e *ScheduleEditor) refetch(ctx context.Context) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.RefetchQueries(ctx, ReportSchedulesKey); err != nil {
		logrus.Warnf("[Client] Failed to refetch %s: %v", ReportSchedulesKey, err)
	}
}

func (e *ScheduleEditor) State() DeleteState {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.state
}

// RequestDelete opens the delete confirmation.
func (e *ScheduleEditor) RequestDelete() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.state == DeleteIdle {
		e.state = DeleteConfirmPending
	}
}

// Dismiss closes the confirmation without deleting.
func (e *ScheduleEditor) Dismiss() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.state == DeleteConfirmPending {
		e.state = DeleteIdle
	}
}

// Confirm sends the delete and closes the modal straight away, whatever the
// request's outcome. It does nothing unless a confirmation is pending.
func (e *ScheduleEditor) Confirm() bool {
	e.mutex.Lock()
	if e.state != DeleteConfirmPending {
		e.mutex.Unlock()
		return false
	}
	e.state = DeleteDone
	id := e.schedule.ID
	e.mutex.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
		defer cancel()

		if err := e.API.DeleteSchedule(ctx, id); err != nil {
			logrus.Errorf("[Client] Failed to delete schedule %s: %v", id, err)
			if e.OnError != nil {
				e.OnError(err)
			}
			return
		}

		e.refetch(ctx)
	}()

	if e.OnClose != nil {
		e.OnClose()
	}
	if e.Navigator != nil {
		e.Navigator.Push(common.SchedulesRoute())
	}
	return true
}

// Wait blocks until every request the editor dispatched has finished.
func (e *ScheduleEditor) Wait() {
	e.wg.Wait()
}

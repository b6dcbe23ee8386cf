package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
)

// ErrAlreadyRunning is returned by RunNow when the schedule is mid-report.
var ErrAlreadyRunning = errors.New("schedule is already running")

// Default is the dispatcher started by Register.
var Default *Dispatcher

// Reporter runs one schedule through the report pipeline.
type Reporter interface {
	Report(schedule *apis.Schedule) error
}

// Dispatcher polls for overdue schedules and runs each through the Reporter,
// never running the same schedule twice at once.
type Dispatcher struct {
	Reporter Reporter
	Now      func() time.Time

	CronClient *cron.Cron

	RunningMap   map[string]struct{}
	RunningMutex sync.Mutex

	wg sync.WaitGroup
}

func NewDispatcher(reporter Reporter) *Dispatcher {
	return &Dispatcher{
		Reporter:   reporter,
		Now:        time.Now,
		CronClient: cron.New(cron.WithLocation(common.Location)),
		RunningMap: make(map[string]struct{}),
	}
}

// Register starts the default dispatcher polling every common.PollInterval.
func Register(reporter Reporter) error {
	Default = NewDispatcher(reporter)
	return Default.Start(common.PollInterval)
}

func (d *Dispatcher) Start(poll time.Duration) error {
	if poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", poll)
	}

	_, err := d.CronClient.AddFunc("@every "+poll.String(), func() {
		d.DispatchOverdue()
	})
	if err != nil {
		return fmt.Errorf("error adding cron job: %w", err)
	}

	d.CronClient.Start()
	logrus.Infof("[Schedule] Polling for overdue schedules every %s", poll)

	return nil
}

// Stop halts polling and waits for in-flight reports to finish.
func (d *Dispatcher) Stop() {
	<-d.CronClient.Stop().Done()
	d.wg.Wait()
}

// Wait blocks until every dispatched report has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// DispatchOverdue starts a report for every overdue schedule that is not
// already running and returns how many were started.
func (d *Dispatcher) DispatchOverdue() int {
	schedules, err := db.OverdueSchedules(d.Now().Unix())
	if err != nil {
		logrus.Errorf("[Schedule] Failed to list overdue schedules: %v", err)
		return 0
	}

	started := 0
	for _, s := range schedules {
		if d.start(s) {
			started++
		}
	}

	if started > 0 {
		logrus.Infof("[Schedule] Dispatched %d overdue schedule(s)", started)
	}
	return started
}

// RunNow reports a schedule immediately, regardless of its next report time.
func (d *Dispatcher) RunNow(scheduleID string) error {
	s, err := db.GetSchedule(scheduleID)
	if err != nil {
		return err
	}

	if !d.start(s) {
		return errors.Wrapf(ErrAlreadyRunning, "schedule %s", scheduleID)
	}
	return nil
}

func (d *Dispatcher) start(s *apis.Schedule) bool {
	d.RunningMutex.Lock()
	defer d.RunningMutex.Unlock()

	if _, exists := d.RunningMap[s.ID]; exists {
		logrus.Debugf("[Schedule] Schedule %s is already running", s.ID)
		return false
	}
	d.RunningMap[s.ID] = struct{}{}

	d.wg.Add(1)
	go d.execute(s)
	return true
}

func (d *Dispatcher) execute(s *apis.Schedule) {
	defer d.wg.Done()
	defer func() {
		d.RunningMutex.Lock()
		delete(d.RunningMap, s.ID)
		d.RunningMutex.Unlock()
	}()

	logrus.Infof("[Schedule] Executing schedule %s: %s", s.ID, s.Name)
	if err := d.Reporter.Report(s); err != nil {
		logrus.Errorf("[Schedule] Schedule %s failed: %v", s.ID, err)
	}
}

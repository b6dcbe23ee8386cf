package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
)

type blockingReporter struct {
	mutex   sync.Mutex
	reports []string
	release chan struct{}
}

func (r *blockingReporter) Report(s *apis.Schedule) error {
	if r.release != nil {
		<-r.release
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, s.ID)
	return nil
}

func (r *blockingReporter) reported() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string{}, r.reports...)
}

func setupDB(t *testing.T) {
	t.Helper()

	database, err := db.Open("sqlite3", "file:"+common.GetUUID()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Init(database))
}

func createSchedule(t *testing.T, id string, next int64) {
	t.Helper()

	s := apis.NewSchedule()
	s.ID = id
	s.Name = id
	s.NextReportTime = next
	require.NoError(t, db.CreateSchedule(s))
}

func TestDispatchOverdue(t *testing.T) {
	setupDB(t)
	createSchedule(t, "due", 100)
	createSchedule(t, "later", 1000)

	reporter := &blockingReporter{}
	d := NewDispatcher(reporter)
	d.Now = func() time.Time { return time.Unix(500, 0) }

	assert.Equal(t, 1, d.DispatchOverdue())
	d.Wait()

	assert.Equal(t, []string{"due"}, reporter.reported())
}

func TestDispatchSkipsRunningSchedules(t *testing.T) {
	setupDB(t)
	createSchedule(t, "due", 100)

	reporter := &blockingReporter{release: make(chan struct{})}
	d := NewDispatcher(reporter)
	d.Now = func() time.Time { return time.Unix(500, 0) }

	assert.Equal(t, 1, d.DispatchOverdue())
	assert.Equal(t, 0, d.DispatchOverdue())

	err := d.RunNow("due")
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	close(reporter.release)
	d.Wait()
	assert.Equal(t, []string{"due"}, reporter.reported())

	require.NoError(t, d.RunNow("due"))
	d.Wait()
	assert.Equal(t, []string{"due", "due"}, reporter.reported())
}

func TestRunNowMissingSchedule(t *testing.T) {
	setupDB(t)

	d := NewDispatcher(&blockingReporter{})
	err := d.RunNow("missing")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestStartRejectsNonPositivePoll(t *testing.T) {
	d := NewDispatcher(&blockingReporter{})
	assert.Error(t, d.Start(0))
}

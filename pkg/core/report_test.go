package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/print"
	"report-scheduler/pkg/send"
)

type fakeDirectory struct {
	emails  map[string]string
	details []*apis.PanelDetail
}

func (f *fakeDirectory) UserEmails(ctx context.Context, userIDs []string) ([]string, error) {
	emails := []string{}
	for _, id := range userIDs {
		if e, ok := f.emails[id]; ok {
			emails = append(emails, e)
		}
	}
	return emails, nil
}

func (f *fakeDirectory) PanelDetails(ctx context.Context) ([]*apis.PanelDetail, error) {
	return f.details, nil
}

type fakeRenderer struct {
	mutex sync.Mutex
	urls  []string
	err   error
}

func (f *fakeRenderer) Screenshot(url string) ([]byte, error) {
	f.mutex.Lock()
	f.urls = append(f.urls, url)
	f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 10))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type fakeMailer struct {
	sent []*send.Email
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, email *send.Email) error {
	f.sent = append(f.sent, email)
	return f.err
}

type fixture struct {
	reporter  *Reporter
	directory *fakeDirectory
	renderer  *fakeRenderer
	mailer    *fakeMailer
	webhooks  []string
	closed    int
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	oldDir, oldLoc := common.WorkDir, common.Location
	common.WorkDir = t.TempDir() + "/"
	common.Location = time.UTC
	t.Cleanup(func() { common.WorkDir, common.Location = oldDir, oldLoc })

	database, err := db.Open("sqlite3", "file:"+common.GetUUID()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Init(database))

	f := &fixture{
		directory: &fakeDirectory{
			emails: map[string]string{"1": "ann@example.com", "2": "bob@example.com"},
			details: []*apis.PanelDetail{
				{PanelID: 7, DashboardID: "stock", Title: "Expiring"},
			},
		},
		renderer: &fakeRenderer{},
		mailer:   &fakeMailer{},
		now:      time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	f.reporter = &Reporter{
		NewDirectory: func(*apis.Settings) Directory { return f.directory },
		NewRenderer: func(*apis.Settings) (print.Renderer, func(), error) {
			return f.renderer, func() { f.closed++ }, nil
		},
		NewMailer: func(*apis.Settings) (send.Mailer, error) { return f.mailer, nil },
		Webhook: func(ctx context.Context, webhookURL, secret, text, scheduleName string) error {
			f.webhooks = append(f.webhooks, text)
			return errors.New("lark down")
		},
		Notify: func(ctx context.Context, appID, appSecret, filePath, message, scheduleName string) error {
			return nil
		},
		Now:     func() time.Time { return f.now },
		Timeout: time.Minute,
	}

	settings := apis.NewSettings()
	settings.GrafanaURL = "http://grafana:3000"
	settings.Email = "reports@example.com"
	require.NoError(t, db.SaveSettings(settings))

	group := &apis.ReportGroup{ID: "g1", Name: "Managers"}
	require.NoError(t, db.CreateReportGroup(group))
	for _, m := range []*apis.ReportGroupMembership{
		{ID: "m1", UserID: "1", ReportGroupID: "g1"},
		{ID: "m2", UserID: "2", ReportGroupID: "g1"},
		{ID: "m3", UserID: "9", ReportGroupID: "g1"},
	} {
		require.NoError(t, db.CreateMembership(m))
	}

	return f
}

func (f *fixture) schedule(t *testing.T) *apis.Schedule {
	t.Helper()

	s := apis.NewSchedule()
	s.ID = "s1"
	s.Name = "Weekly stock"
	s.Description = "Stock levels for the week"
	s.Interval = apis.IntervalWeekly
	s.Day = 1
	s.Time = "09:00"
	s.ReportGroupID = "g1"
	s.Lookback = "7d"
	s.NextReportTime = f.now.Unix()
	s.PanelDetails = []*apis.PanelDetail{
		{PanelID: 3, DashboardID: "sales", Title: "Revenue"},
	}
	s.Panels = []int{3, 7}
	require.NoError(t, db.CreateSchedule(s))

	stored, err := db.GetSchedule("s1")
	require.NoError(t, err)
	return stored
}

func TestReport(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)

	require.NoError(t, f.reporter.Report(s))

	assert.Len(t, f.renderer.urls, 2)
	assert.Contains(t, f.renderer.urls[0], "http://grafana:3000/d-solo/sales/")
	assert.Contains(t, f.renderer.urls[1], "http://grafana:3000/d-solo/stock/")
	assert.Contains(t, f.renderer.urls[0], "from=now-7d")
	assert.Equal(t, 1, f.closed)

	require.Len(t, f.mailer.sent, 1)
	email := f.mailer.sent[0]
	assert.ElementsMatch(t, []string{"ann@example.com", "bob@example.com"}, email.To)
	assert.Equal(t, "Report: Weekly stock", email.Subject)
	assert.Equal(t, "Stock levels for the week", email.Body)
	assert.True(t, common.FileExists(email.Attachment))
	assert.Equal(t, "Weekly stock 2024-03-04.pdf", filepath.Base(email.Attachment))

	assert.Len(t, f.webhooks, 0)

	records, err := db.ListRecord("s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, apis.RecordStateSent, records[0].State)
	assert.Equal(t, "Weekly stock 2024-03-04.pdf", records[0].FileName)
	assert.NotEmpty(t, records[0].EndTime)

	stored, err := db.GetSchedule("s1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC).Unix(), stored.NextReportTime)
}

func TestReportLarkIsBestEffort(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)

	settings, err := db.GetSettings()
	require.NoError(t, err)
	settings.LarkWebhookURL = "http://lark"
	require.NoError(t, db.SaveSettings(settings))

	require.NoError(t, f.reporter.Report(s))
	assert.Len(t, f.webhooks, 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestReportFailureStillAdvances(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)
	f.renderer.err = errors.New("browser crashed")

	err := f.reporter.Report(s)
	assert.EqualError(t, err, "browser crashed")
	assert.Empty(t, f.mailer.sent)

	records, err := db.ListRecord("s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, apis.RecordStateFailed, records[0].State)
	assert.Equal(t, "browser crashed", records[0].ErrMessage)

	stored, err := db.GetSchedule("s1")
	require.NoError(t, err)
	assert.Greater(t, stored.NextReportTime, f.now.Unix())
}

func TestReportWithoutRecipients(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)
	s.ReportGroupID = ""

	err := f.reporter.Report(s)
	assert.ErrorIs(t, err, send.ErrNoRecipients)
	assert.Empty(t, f.renderer.urls)

	records, err := db.ListRecord("s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, apis.RecordStateFailed, records[0].State)
}

func TestPanelDetailsDropsVanishedPanels(t *testing.T) {
	f := setup(t)
	s := apis.NewSchedule()
	s.ID = "s2"
	s.PanelDetails = []*apis.PanelDetail{{PanelID: 7}, {PanelID: 99}}

	details, err := f.reporter.panelDetails(context.Background(), f.directory, s)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "stock", details[0].DashboardID)
	assert.Equal(t, "Expiring", details[0].Title)
	assert.Equal(t, "", s.PanelDetails[0].DashboardID)

	s.PanelDetails = []*apis.PanelDetail{{PanelID: 99}}
	_, err = f.reporter.panelDetails(context.Background(), f.directory, s)
	assert.Error(t, err)
}

func TestReportAheadOfTimeKeepsNextReportTime(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)
	s.Interval = apis.IntervalFortnightly
	require.NoError(t, db.UpdateSchedule(s))
	due := s.NextReportTime

	f.now = time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.reporter.Report(s))
	require.Len(t, f.mailer.sent, 1)

	stored, err := db.GetSchedule("s1")
	require.NoError(t, err)
	assert.Equal(t, due, stored.NextReportTime)

	f.now = time.Date(2024, 3, 4, 9, 0, 30, 0, time.UTC)
	require.NoError(t, f.reporter.Report(stored))
	stored, err = db.GetSchedule("s1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC).Unix(), stored.NextReportTime)
}

func TestReportAdvancesFromEditedSchedule(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)

	edited := s.Clone()
	edited.Interval = apis.IntervalDaily
	require.NoError(t, db.UpdateSchedule(edited))

	require.NoError(t, f.reporter.Report(s))

	stored, err := db.GetSchedule("s1")
	require.NoError(t, err)
	assert.Equal(t, apis.IntervalDaily, stored.Interval)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC).Unix(), stored.NextReportTime)
}

func TestReportForDeletedSchedule(t *testing.T) {
	f := setup(t)
	s := f.schedule(t)
	require.NoError(t, db.DeleteSchedule("s1"))

	require.NoError(t, f.reporter.Report(s))
	_, err := db.GetSchedule("s1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPanelDetailsWarnsOnSharedPanelID(t *testing.T) {
	f := setup(t)
	f.directory.details = []*apis.PanelDetail{
		{PanelID: 7, DashboardID: "stock", Title: "Expiring"},
		{PanelID: 7, DashboardID: "sales", Title: "Refunds"},
	}
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	s := apis.NewSchedule()
	s.ID = "s2"
	s.PanelDetails = []*apis.PanelDetail{{PanelID: 7}}

	details, err := f.reporter.panelDetails(context.Background(), f.directory, s)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "stock", details[0].DashboardID)

	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "2 dashboards") {
			warned = true
		}
	}
	assert.True(t, warned)
}

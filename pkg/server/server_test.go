package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-scheduler/pkg/api"
	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/schedule"
)

var now = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) http.Handler {
	t.Helper()

	oldDir, oldLoc, oldNow := common.WorkDir, common.Location, api.Now
	common.WorkDir = t.TempDir() + "/"
	common.Location = time.UTC
	api.Now = func() time.Time { return now }
	t.Cleanup(func() { common.WorkDir, common.Location, api.Now = oldDir, oldLoc, oldNow })

	database, err := db.Open("sqlite3", "file:"+common.GetUUID()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Init(database))

	return Start()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func decode(t *testing.T, rw *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), v), rw.Body.String())
}

const base = "/api/plugins/msupply-datasource"

func TestUnknownPlugin(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodGet, "/api/plugins/other-app/resources/schedules", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	var resp common.ErrorResponse
	decode(t, rw, &resp)
	assert.Contains(t, resp.Error, "other-app")
}

func TestAppAndDatasourceIDs(t *testing.T) {
	h := setup(t)
	common.PluginID = "msupply-app"
	t.Cleanup(func() { common.PluginID = "msupply-datasource" })

	rw := do(t, h, http.MethodGet, "/api/plugins/msupply-app/settings", nil)
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, "/api/plugins/msupply-app/resources/schedules", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(t, h, http.MethodGet, base+"/resources/schedules", nil)
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, base+"/settings", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestHealthz(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestScheduleLifecycle(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodPost, base+"/resources/schedules", map[string]interface{}{
		"name":     "Daily sales",
		"interval": apis.IntervalDaily,
		"time":     "10:00",
		"panels":   []int{4},
		"panelDetails": []map[string]interface{}{
			{"panelID": 4, "dashboardID": "sales", "title": "Revenue"},
		},
	})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())

	created := apis.NewSchedule()
	decode(t, rw, created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC).Unix(), created.NextReportTime)

	path := base + "/resources/schedules/" + created.ID

	rw = do(t, h, http.MethodGet, base+"/resources/schedules", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var list []*apis.Schedule
	decode(t, rw, &list)
	require.Len(t, list, 1)
	assert.Equal(t, []int{4}, list[0].Panels)

	rw = do(t, h, http.MethodPatch, path, apis.SchedulePatch{Key: apis.ScheduleKeyName, Value: "Sales"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	patched := apis.NewSchedule()
	decode(t, rw, patched)
	assert.Equal(t, "Sales", patched.Name)
	assert.Equal(t, created.NextReportTime, patched.NextReportTime)
	require.Len(t, patched.PanelDetails, 1)
	assert.Equal(t, "sales", patched.PanelDetails[0].DashboardID)

	rw = do(t, h, http.MethodPatch, path, apis.SchedulePatch{Key: apis.ScheduleKeyTime, Value: "08:30"})
	require.Equal(t, http.StatusOK, rw.Code)
	decode(t, rw, patched)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC).Unix(), patched.NextReportTime)

	rw = do(t, h, http.MethodPatch, path, apis.SchedulePatch{Key: "colour", Value: "red"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, h, http.MethodPatch, path, apis.SchedulePatch{Key: apis.ScheduleKeyDay, Value: 40})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	replacement := patched.Clone()
	replacement.Description = "All stores"
	replacement.Panels = []int{4, 9}
	rw = do(t, h, http.MethodPut, path, replacement)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	updated := apis.NewSchedule()
	decode(t, rw, updated)
	assert.Equal(t, "All stores", updated.Description)
	assert.Equal(t, []int{4, 9}, updated.Panels)

	rw = do(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	rw = do(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestCreateScheduleDefaultsAndValidation(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodPost, base+"/resources/schedules", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	s := apis.NewSchedule()
	decode(t, rw, s)
	assert.Equal(t, apis.DefaultScheduleName, s.Name)
	assert.Equal(t, 1, s.Day)

	rw = do(t, h, http.MethodPost, base+"/resources/schedules", map[string]interface{}{"interval": 9})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	req := httptest.NewRequest(http.MethodPost, base+"/resources/schedules", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

type countingReporter struct {
	mutex sync.Mutex
	ids   []string
}

func (r *countingReporter) Report(s *apis.Schedule) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.ids = append(r.ids, s.ID)
	return nil
}

func TestSendSchedule(t *testing.T) {
	h := setup(t)

	old := schedule.Default
	t.Cleanup(func() { schedule.Default = old })

	schedule.Default = nil
	rw := do(t, h, http.MethodPost, base+"/resources/schedules/missing/send", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)

	reporter := &countingReporter{}
	schedule.Default = schedule.NewDispatcher(reporter)

	s := apis.NewSchedule()
	s.ID = "s1"
	s.Name = "Stock"
	require.NoError(t, db.CreateSchedule(s))

	rw = do(t, h, http.MethodPost, base+"/resources/schedules/s1/send", nil)
	assert.Equal(t, http.StatusAccepted, rw.Code)
	schedule.Default.Wait()
	assert.Equal(t, []string{"s1"}, reporter.ids)

	rw = do(t, h, http.MethodPost, base+"/resources/schedules/missing/send", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestReportGroups(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodPost, base+"/resources/report-groups", apis.ReportGroup{Name: "Managers"})
	require.Equal(t, http.StatusCreated, rw.Code)
	group := apis.NewReportGroup()
	decode(t, rw, group)
	require.NotEmpty(t, group.ID)

	rw = do(t, h, http.MethodPost, base+"/resources/report-groups", apis.ReportGroup{})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	groupPath := base + "/resources/report-groups/" + group.ID
	rw = do(t, h, http.MethodPut, groupPath, apis.ReportGroup{Name: "Store managers"})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, groupPath, nil)
	decode(t, rw, group)
	assert.Equal(t, "Store managers", group.Name)

	rw = do(t, h, http.MethodPost, groupPath+"/members", apis.ReportGroupMembership{UserID: "7"})
	require.Equal(t, http.StatusCreated, rw.Code)
	membership := apis.NewReportGroupMembership()
	decode(t, rw, membership)
	assert.Equal(t, group.ID, membership.ReportGroupID)

	rw = do(t, h, http.MethodPost, groupPath+"/members", apis.ReportGroupMembership{})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, h, http.MethodPost, base+"/resources/report-groups/missing/members", apis.ReportGroupMembership{UserID: "7"})
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(t, h, http.MethodGet, groupPath+"/members", nil)
	var members []*apis.ReportGroupMembership
	decode(t, rw, &members)
	require.Len(t, members, 1)
	assert.Equal(t, "7", members[0].UserID)

	rw = do(t, h, http.MethodDelete, base+"/resources/report-group-memberships/"+membership.ID, nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	rw = do(t, h, http.MethodDelete, groupPath, nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	rw = do(t, h, http.MethodGet, base+"/resources/report-groups", nil)
	var groups []*apis.ReportGroup
	decode(t, rw, &groups)
	assert.Empty(t, groups)
}

func TestDatasourceSettings(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodPost, base+"/resources/settings", apis.Settings{
		GrafanaURL:      "http://grafana:3000",
		GrafanaUsername: "admin",
		GrafanaPassword: "secret",
		Email:           "reports@example.com",
		EmailPassword:   "mail-secret",
	})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, base+"/resources/settings", nil)
	settings := apis.NewSettings()
	decode(t, rw, settings)
	assert.Equal(t, "admin", settings.GrafanaUsername)
	assert.Empty(t, settings.GrafanaPassword)
	assert.Empty(t, settings.EmailPassword)

	settings.GrafanaUsername = "viewer"
	rw = do(t, h, http.MethodPost, base+"/resources/settings", settings)
	require.Equal(t, http.StatusOK, rw.Code)

	stored, err := db.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "viewer", stored.GrafanaUsername)
	assert.Equal(t, "secret", stored.GrafanaPassword)
	assert.Equal(t, "mail-secret", stored.EmailPassword)
}

func TestPluginSettings(t *testing.T) {
	h := setup(t)

	rw := do(t, h, http.MethodGet, base+"/settings", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	meta := &apis.PluginMeta{}
	decode(t, rw, meta)
	assert.False(t, meta.Enabled)

	rw = do(t, h, http.MethodPost, base+"/settings", map[string]interface{}{
		"enabled":  true,
		"pinned":   true,
		"jsonData": map[string]interface{}{"grafanaUsername": "admin"},
	})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodPost, base+"/settings", map[string]interface{}{"pinned": false})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, base+"/settings", nil)
	decode(t, rw, meta)
	assert.True(t, meta.Enabled)
	assert.False(t, meta.Pinned)
	assert.Equal(t, "admin", meta.JSONData["grafanaUsername"])
}

func TestListPanel(t *testing.T) {
	h := setup(t)

	grafana := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/search":
			rw.Write([]byte(`[{"uid":"stock","title":"Stock"}]`))
		case "/api/dashboards/uid/stock":
			rw.Write([]byte(`{"dashboard":{"panels":[{"id":2,"title":"On hand","type":"table"}]}}`))
		default:
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	defer grafana.Close()

	settings := apis.NewSettings()
	settings.GrafanaURL = grafana.URL
	require.NoError(t, db.SaveSettings(settings))

	rw := do(t, h, http.MethodGet, base+"/resources/panels", nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	var details []*apis.PanelDetail
	decode(t, rw, &details)
	require.Len(t, details, 1)
	assert.Equal(t, "stock", details[0].DashboardID)
	assert.Equal(t, 2, details[0].PanelID)

	grafana.Close()
	rw = do(t, h, http.MethodGet, base+"/resources/panels", nil)
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
}

func TestRecords(t *testing.T) {
	h := setup(t)

	record := &apis.Record{ID: "r1", ScheduleID: "s1", Name: "Stock", State: apis.RecordStateSent, FileName: "Stock 2024-03-04.pdf"}
	require.NoError(t, db.CreateRecord(record))
	require.NoError(t, db.CreateRecord(&apis.Record{ID: "r2", ScheduleID: "s2", State: apis.RecordStateFailed}))
	require.NoError(t, common.WriteFile(filepath.Join(common.ReportDir("r1"), record.FileName), []byte("%PDF-1.4")))

	rw := do(t, h, http.MethodGet, base+"/resources/records?scheduleId=s1", nil)
	var records []*apis.Record
	decode(t, rw, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)

	rw = do(t, h, http.MethodGet, base+"/resources/records/r1/file", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "application/pdf", rw.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", rw.Body.String())

	rw = do(t, h, http.MethodGet, base+"/resources/records/r2/file", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(t, h, http.MethodDelete, base+"/resources/records/r1", nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)
	assert.False(t, common.FileExists(common.ReportDir("r1")))

	rw = do(t, h, http.MethodGet, base+"/resources/records/r1", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

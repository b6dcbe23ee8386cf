package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	MySQL         = os.Getenv("MY_SQL")
	MySQLUser     = os.Getenv("MY_SQL_USER")
	MySQLPassword = os.Getenv("MY_SQL_PASSWORD")
	MySQLHost     = os.Getenv("MY_SQL_HOST")
	MySQLPort     = os.Getenv("MY_SQL_PORT")
	MySQLDB       = os.Getenv("MY_SQL_DB")

	SQLiteName = "sqlite.db"

	PluginID     = "msupply-datasource"
	DatasourceID = "msupply-datasource"
	GrafanaURL   = "http://localhost:3000"

	PrintWaitSecond = os.Getenv("PRINT_WAIT_SECOND")

	PollInterval = time.Minute
	Location     = time.Local

	WorkDir = "/opt/report-scheduler/"
)

func ConfigFilePath() string {
	return WorkDir + "config/plugin.yml"
}

func PrintShotPath() string {
	return WorkDir + "print/shots/"
}

func PrintPDFPath() string {
	return WorkDir + "print/"
}

// ReportDir holds the files produced by one run.
func ReportDir(recordID string) string {
	return filepath.Join(PrintPDFPath(), recordID)
}

// PluginBaseURL is the client-side route prefix of the plugin's pages.
func PluginBaseURL() string {
	return "/a/" + PluginID
}

// SchedulesRoute is where the UI lands after creating or deleting a schedule.
func SchedulesRoute() string {
	return PluginBaseURL() + "/schedules/"
}

func GetUUID() string {
	return uuid.New().String()
}

// GetReportFileName builds the attachment name for a schedule run, placing the
// formatted date at the start or the end of the schedule name.
func GetReportFileName(name, dateFormat, datePosition string, t time.Time) string {
	if dateFormat == "" {
		dateFormat = "2006-01-02"
	}
	if name == "" {
		name = "Report"
	}

	base := sanitizeFileName(name)
	date := t.Format(dateFormat)
	date = sanitizeFileName(date)

	if datePosition == "start" {
		return fmt.Sprintf("%s %s.pdf", date, base)
	}
	return fmt.Sprintf("%s %s.pdf", base, date)
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}

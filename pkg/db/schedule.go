package db

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
)

const scheduleColumns = "id, name, description, report_interval, report_time, report_day, report_group_id, next_report_time, lookback, date_format, date_position"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*apis.Schedule, error) {
	schedule := apis.NewSchedule()
	err := row.Scan(&schedule.ID, &schedule.Name, &schedule.Description, &schedule.Interval, &schedule.Time, &schedule.Day,
		&schedule.ReportGroupID, &schedule.NextReportTime, &schedule.Lookback, &schedule.DateFormat, &schedule.DatePosition)
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetSchedule retrieves a schedule and its panel details by ID.
func GetSchedule(scheduleID string) (*apis.Schedule, error) {
	row := DB.QueryRow("SELECT "+scheduleColumns+" FROM schedule WHERE id = ? LIMIT 1", scheduleID)

	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "schedule %s", scheduleID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan schedule row")
	}

	if err = attachReportContent(schedule); err != nil {
		return nil, err
	}

	return schedule, nil
}

// ListSchedule retrieves all schedules ordered by name.
func ListSchedule() ([]*apis.Schedule, error) {
	return querySchedules("SELECT " + scheduleColumns + " FROM schedule ORDER BY name, id")
}

// OverdueSchedules returns the schedules whose next report time is at or before now (unix seconds).
func OverdueSchedules(now int64) ([]*apis.Schedule, error) {
	return querySchedules("SELECT "+scheduleColumns+" FROM schedule WHERE next_report_time <= ? ORDER BY next_report_time", now)
}

func querySchedules(query string, args ...interface{}) ([]*apis.Schedule, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query schedules")
	}
	defer rows.Close()

	schedules := apis.NewSchedules()
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan schedule row")
		}
		schedules = append(schedules, schedule)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate schedule rows")
	}

	// Panel details are loaded after the cursor is closed: SQLite runs on a single connection.
	rows.Close()
	for _, schedule := range schedules {
		if err = attachReportContent(schedule); err != nil {
			return nil, err
		}
	}

	return schedules, nil
}

// CreateSchedule inserts a schedule together with its panel details.
func CreateSchedule(schedule *apis.Schedule) error {
	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO schedule("+scheduleColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		schedule.ID, schedule.Name, schedule.Description, schedule.Interval, schedule.Time, schedule.Day,
		schedule.ReportGroupID, schedule.NextReportTime, schedule.Lookback, schedule.DateFormat, schedule.DatePosition)
	if err != nil {
		return errors.Wrap(err, "insert schedule")
	}

	if err = replaceReportContent(tx, schedule); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit schedule")
	}

	logrus.Infof("[DB] Schedule created successfully with ID: %s", schedule.ID)
	return nil
}

// UpdateSchedule overwrites a schedule and replaces its panel details.
func UpdateSchedule(schedule *apis.Schedule) error {
	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.Exec("UPDATE schedule SET name = ?, description = ?, report_interval = ?, report_time = ?, report_day = ?, report_group_id = ?, next_report_time = ?, lookback = ?, date_format = ?, date_position = ? WHERE id = ?",
		schedule.Name, schedule.Description, schedule.Interval, schedule.Time, schedule.Day, schedule.ReportGroupID,
		schedule.NextReportTime, schedule.Lookback, schedule.DateFormat, schedule.DatePosition, schedule.ID)
	if err != nil {
		return errors.Wrap(err, "update schedule")
	}

	if err = expectRow(result, "schedule", schedule.ID); err != nil {
		return err
	}

	if err = replaceReportContent(tx, schedule); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit schedule")
	}

	logrus.Infof("[DB] Schedule updated successfully with ID: %s", schedule.ID)
	return nil
}

// SetNextReportTime moves a schedule's next report time without touching the rest of the row.
func SetNextReportTime(scheduleID string, next int64) error {
	result, err := DB.Exec("UPDATE schedule SET next_report_time = ? WHERE id = ?", next, scheduleID)
	if err != nil {
		return errors.Wrap(err, "update next report time")
	}

	return expectRow(result, "schedule", scheduleID)
}

// DeleteSchedule removes a schedule and its panel details.
func DeleteSchedule(scheduleID string) error {
	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM schedule WHERE id = ?", scheduleID)
	if err != nil {
		return errors.Wrap(err, "delete schedule")
	}

	if err = expectRow(result, "schedule", scheduleID); err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM report_content WHERE schedule_id = ?", scheduleID); err != nil {
		return errors.Wrap(err, "delete report content")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit schedule delete")
	}

	logrus.Infof("[DB] Schedule deleted successfully with ID: %s", scheduleID)
	return nil
}

func expectRow(result sql.Result, table, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}

	if rowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "%s %s", table, id)
	}

	return nil
}

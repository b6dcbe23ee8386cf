package db

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
)

const recordColumns = "id, schedule_id, name, start_time, end_time, state, file_name, recipients, err_message"

func GetRecord(recordID string) (*apis.Record, error) {
	row := DB.QueryRow("SELECT "+recordColumns+" FROM record WHERE id = ? LIMIT 1", recordID)

	record := apis.NewRecord()
	err := row.Scan(&record.ID, &record.ScheduleID, &record.Name, &record.StartTime, &record.EndTime, &record.State, &record.FileName, &record.Recipients, &record.ErrMessage)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "record %s", recordID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan record row")
	}

	return record, nil
}

// ListRecord returns runs newest first, optionally limited to one schedule.
func ListRecord(scheduleID string) ([]*apis.Record, error) {
	query := "SELECT " + recordColumns + " FROM record"
	var args []interface{}
	if scheduleID != "" {
		query += " WHERE schedule_id = ?"
		args = append(args, scheduleID)
	}
	query += " ORDER BY start_time DESC, id"

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query records")
	}
	defer rows.Close()

	records := apis.NewRecords()
	for rows.Next() {
		record := apis.NewRecord()
		err = rows.Scan(&record.ID, &record.ScheduleID, &record.Name, &record.StartTime, &record.EndTime, &record.State, &record.FileName, &record.Recipients, &record.ErrMessage)
		if err != nil {
			return nil, errors.Wrap(err, "scan record row")
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate record rows")
	}

	return records, nil
}

func CreateRecord(record *apis.Record) error {
	_, err := DB.Exec("INSERT INTO record("+recordColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.ScheduleID, record.Name, record.StartTime, record.EndTime, record.State, record.FileName, record.Recipients, record.ErrMessage)
	if err != nil {
		return errors.Wrap(err, "insert record")
	}

	logrus.Debugf("[DB] Record created with ID: %s", record.ID)
	return nil
}

func UpdateRecord(record *apis.Record) error {
	result, err := DB.Exec("UPDATE record SET end_time = ?, state = ?, file_name = ?, recipients = ?, err_message = ? WHERE id = ?",
		record.EndTime, record.State, record.FileName, record.Recipients, record.ErrMessage, record.ID)
	if err != nil {
		return errors.Wrap(err, "update record")
	}

	return expectRow(result, "record", record.ID)
}

func DeleteRecord(recordID string) error {
	result, err := DB.Exec("DELETE FROM record WHERE id = ?", recordID)
	if err != nil {
		return errors.Wrap(err, "delete record")
	}

	return expectRow(result, "record", recordID)
}

package db

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
)

const settingsID = "settings"

// GetSettings returns the stored datasource settings, or the defaults when none were saved.
func GetSettings() (*apis.Settings, error) {
	row := DB.QueryRow("SELECT data FROM settings WHERE id = ? LIMIT 1", settingsID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return apis.NewSettings(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan settings row")
	}

	settings := apis.NewSettings()
	if err = json.Unmarshal([]byte(data), settings); err != nil {
		return nil, errors.Wrap(err, "unmarshal settings")
	}

	return settings, nil
}

// SaveSettings replaces the stored datasource settings.
func SaveSettings(settings *apis.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "marshal settings")
	}

	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err = tx.Exec("DELETE FROM settings WHERE id = ?", settingsID); err != nil {
		return errors.Wrap(err, "clear settings")
	}

	if _, err = tx.Exec("INSERT INTO settings(id, data) VALUES(?, ?)", settingsID, string(data)); err != nil {
		return errors.Wrap(err, "insert settings")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit settings")
	}

	logrus.Infof("[DB] Settings saved")
	return nil
}

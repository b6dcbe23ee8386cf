package db

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
)

// GetReportGroup retrieves a report group by ID.
func GetReportGroup(groupID string) (*apis.ReportGroup, error) {
	row := DB.QueryRow("SELECT id, name, description FROM report_group WHERE id = ? LIMIT 1", groupID)

	group := apis.NewReportGroup()
	err := row.Scan(&group.ID, &group.Name, &group.Description)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "report group %s", groupID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan report group row")
	}

	return group, nil
}

// ListReportGroup retrieves all report groups ordered by name.
func ListReportGroup() ([]*apis.ReportGroup, error) {
	rows, err := DB.Query("SELECT id, name, description FROM report_group ORDER BY name, id")
	if err != nil {
		return nil, errors.Wrap(err, "query report groups")
	}
	defer rows.Close()

	groups := apis.NewReportGroups()
	for rows.Next() {
		group := apis.NewReportGroup()
		if err = rows.Scan(&group.ID, &group.Name, &group.Description); err != nil {
			return nil, errors.Wrap(err, "scan report group row")
		}
		groups = append(groups, group)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate report group rows")
	}

	return groups, nil
}

func CreateReportGroup(group *apis.ReportGroup) error {
	_, err := DB.Exec("INSERT INTO report_group(id, name, description) VALUES(?, ?, ?)", group.ID, group.Name, group.Description)
	if err != nil {
		return errors.Wrap(err, "insert report group")
	}

	logrus.Infof("[DB] Report group created successfully with ID: %s", group.ID)
	return nil
}

func UpdateReportGroup(group *apis.ReportGroup) error {
	result, err := DB.Exec("UPDATE report_group SET name = ?, description = ? WHERE id = ?", group.Name, group.Description, group.ID)
	if err != nil {
		return errors.Wrap(err, "update report group")
	}

	return expectRow(result, "report group", group.ID)
}

// DeleteReportGroup removes a report group and its memberships.
func DeleteReportGroup(groupID string) error {
	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM report_group WHERE id = ?", groupID)
	if err != nil {
		return errors.Wrap(err, "delete report group")
	}

	if err = expectRow(result, "report group", groupID); err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM report_group_membership WHERE report_group_id = ?", groupID); err != nil {
		return errors.Wrap(err, "delete report group memberships")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit report group delete")
	}

	logrus.Infof("[DB] Report group deleted successfully with ID: %s", groupID)
	return nil
}

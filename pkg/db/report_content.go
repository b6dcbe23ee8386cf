package db

import (
	"database/sql"

	"github.com/pkg/errors"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

// ListReportContent returns the panel details stored for a schedule.
func ListReportContent(scheduleID string) ([]*apis.PanelDetail, error) {
	rows, err := DB.Query("SELECT id, schedule_id, panel_id, dashboard_id, title, panel_type, lookback, variables FROM report_content WHERE schedule_id = ? ORDER BY panel_id, id", scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "query report content")
	}
	defer rows.Close()

	details := apis.NewPanelDetails()
	for rows.Next() {
		detail := &apis.PanelDetail{}
		err = rows.Scan(&detail.ID, &detail.ScheduleID, &detail.PanelID, &detail.DashboardID, &detail.Title, &detail.Type, &detail.Lookback, &detail.Variables)
		if err != nil {
			return nil, errors.Wrap(err, "scan report content row")
		}
		details = append(details, detail)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate report content rows")
	}

	return details, nil
}

func attachReportContent(schedule *apis.Schedule) error {
	details, err := ListReportContent(schedule.ID)
	if err != nil {
		return err
	}

	schedule.PanelDetails = details
	schedule.Panels = make([]int, 0, len(details))
	for _, d := range details {
		schedule.Panels = append(schedule.Panels, d.PanelID)
	}

	return nil
}

// replaceReportContent rewrites a schedule's panel details inside tx. Panel ids
// listed without a matching detail are stored as bare details so the id list survives.
func replaceReportContent(tx *sql.Tx, schedule *apis.Schedule) error {
	if _, err := tx.Exec("DELETE FROM report_content WHERE schedule_id = ?", schedule.ID); err != nil {
		return errors.Wrap(err, "clear report content")
	}

	stmt, err := tx.Prepare("INSERT INTO report_content(id, schedule_id, panel_id, dashboard_id, title, panel_type, lookback, variables) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "prepare report content insert")
	}
	defer stmt.Close()

	seen := make(map[int]struct{})
	details := make([]*apis.PanelDetail, 0, len(schedule.PanelDetails)+len(schedule.Panels))
	for _, d := range schedule.PanelDetails {
		seen[d.PanelID] = struct{}{}
		details = append(details, d)
	}
	for _, panelID := range schedule.Panels {
		if _, ok := seen[panelID]; !ok {
			seen[panelID] = struct{}{}
			details = append(details, &apis.PanelDetail{PanelID: panelID})
		}
	}

	for _, d := range details {
		if d.ID == "" {
			d.ID = common.GetUUID()
		}
		d.ScheduleID = schedule.ID

		_, err = stmt.Exec(d.ID, d.ScheduleID, d.PanelID, d.DashboardID, d.Title, d.Type, d.Lookback, d.Variables)
		if err != nil {
			return errors.Wrapf(err, "insert report content for panel %d", d.PanelID)
		}
	}

	return nil
}

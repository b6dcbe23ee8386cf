package db

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
)

// ListMembership returns the memberships of a report group.
func ListMembership(groupID string) ([]*apis.ReportGroupMembership, error) {
	rows, err := DB.Query("SELECT id, user_id, report_group_id FROM report_group_membership WHERE report_group_id = ? ORDER BY user_id, id", groupID)
	if err != nil {
		return nil, errors.Wrap(err, "query memberships")
	}
	defer rows.Close()

	memberships := apis.NewReportGroupMemberships()
	for rows.Next() {
		m := apis.NewReportGroupMembership()
		if err = rows.Scan(&m.ID, &m.UserID, &m.ReportGroupID); err != nil {
			return nil, errors.Wrap(err, "scan membership row")
		}
		memberships = append(memberships, m)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate membership rows")
	}

	return memberships, nil
}

// GroupMemberUserIDs returns the Grafana user ids that belong to a report group.
func GroupMemberUserIDs(groupID string) ([]string, error) {
	memberships, err := ListMembership(groupID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
	}

	return userIDs, nil
}

func CreateMembership(membership *apis.ReportGroupMembership) error {
	_, err := DB.Exec("INSERT INTO report_group_membership(id, user_id, report_group_id) VALUES(?, ?, ?)", membership.ID, membership.UserID, membership.ReportGroupID)
	if err != nil {
		return errors.Wrap(err, "insert membership")
	}

	logrus.Infof("[DB] User %s added to report group %s", membership.UserID, membership.ReportGroupID)
	return nil
}

func DeleteMembership(membershipID string) error {
	result, err := DB.Exec("DELETE FROM report_group_membership WHERE id = ?", membershipID)
	if err != nil {
		return errors.Wrap(err, "delete membership")
	}

	return expectRow(result, "membership", membershipID)
}

package apis

type ReportGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ReportGroupMembership struct {
	ID            string `json:"id"`
	UserID        string `json:"userID"`
	ReportGroupID string `json:"reportGroupID"`
}

func NewReportGroup() *ReportGroup {
	return &ReportGroup{}
}

func NewReportGroups() []*ReportGroup {
	return []*ReportGroup{}
}

func NewReportGroupMembership() *ReportGroupMembership {
	return &ReportGroupMembership{}
}

func NewReportGroupMemberships() []*ReportGroupMembership {
	return []*ReportGroupMembership{}
}

package apis

const (
	RecordStateRunning = "running"
	RecordStateSent    = "sent"
	RecordStateFailed  = "failed"
)

// Record is one run of a schedule through the report pipeline.
type Record struct {
	ID         string `json:"id"`
	ScheduleID string `json:"scheduleID"`
	Name       string `json:"name"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	State      string `json:"state"`
	FileName   string `json:"fileName"`
	Recipients string `json:"recipients"`
	ErrMessage string `json:"errMessage"`
}

func NewRecords() []*Record {
	return []*Record{}
}

func NewRecord() *Record {
	return &Record{}
}

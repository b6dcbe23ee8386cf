package apis

import (
	"fmt"
)

const (
	IntervalDaily = iota
	IntervalWeekly
	IntervalFortnightly
	IntervalMonthly
	IntervalQuarterly
	IntervalYearly
)

const (
	DatePositionStart = "start"
	DatePositionEnd   = "end"

	DefaultDateFormat   = "2006-01-02"
	DefaultScheduleName = "Report schedule"
)

// ScheduleKey names a field of a Schedule that can be patched on its own.
type ScheduleKey string

const (
	ScheduleKeyName          ScheduleKey = "name"
	ScheduleKeyDescription   ScheduleKey = "description"
	ScheduleKeyInterval      ScheduleKey = "interval"
	ScheduleKeyTime          ScheduleKey = "time"
	ScheduleKeyDay           ScheduleKey = "day"
	ScheduleKeyReportGroupID ScheduleKey = "reportGroupID"
	ScheduleKeyLookback      ScheduleKey = "lookback"
	ScheduleKeyDateFormat    ScheduleKey = "dateFormat"
	ScheduleKeyDatePosition  ScheduleKey = "datePosition"
)

type Schedule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Interval       int            `json:"interval"`
	Time           string         `json:"time"`
	Day            int            `json:"day"`
	ReportGroupID  string         `json:"reportGroupID"`
	NextReportTime int64          `json:"nextReportTime"`
	Lookback       string         `json:"lookback"`
	DateFormat     string         `json:"dateFormat"`
	DatePosition   string         `json:"datePosition"`
	Panels         []int          `json:"panels"`
	PanelDetails   []*PanelDetail `json:"panelDetails"`
}

// PanelDetail is one dashboard panel included in a schedule's report.
type PanelDetail struct {
	ID          string `json:"id"`
	ScheduleID  string `json:"scheduleID"`
	PanelID     int    `json:"panelID"`
	DashboardID string `json:"dashboardID"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Lookback    string `json:"lookback"`
	Variables   string `json:"variables"`
}

// SchedulePatch is the body of a single-field schedule update.
type SchedulePatch struct {
	Key   ScheduleKey `json:"key"`
	Value interface{} `json:"value"`
}

func NewSchedule() *Schedule {
	return &Schedule{
		Day:          1,
		Panels:       []int{},
		PanelDetails: []*PanelDetail{},
	}
}

func NewSchedules() []*Schedule {
	return []*Schedule{}
}

func NewPanelDetails() []*PanelDetail {
	return []*PanelDetail{}
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.Panels = append([]int{}, s.Panels...)
	c.PanelDetails = make([]*PanelDetail, 0, len(s.PanelDetails))
	for _, d := range s.PanelDetails {
		detail := *d
		c.PanelDetails = append(c.PanelDetails, &detail)
	}
	return &c
}

// Set applies a key/value patch to the schedule. Numbers decoded from JSON
// arrive as float64 and are accepted for the integer fields.
func (s *Schedule) Set(key ScheduleKey, value interface{}) error {
	switch key {
	case ScheduleKeyName:
		return setString(&s.Name, key, value)
	case ScheduleKeyDescription:
		return setString(&s.Description, key, value)
	case ScheduleKeyTime:
		return setString(&s.Time, key, value)
	case ScheduleKeyReportGroupID:
		return setString(&s.ReportGroupID, key, value)
	case ScheduleKeyLookback:
		return setString(&s.Lookback, key, value)
	case ScheduleKeyDateFormat:
		return setString(&s.DateFormat, key, value)
	case ScheduleKeyDatePosition:
		return setString(&s.DatePosition, key, value)
	case ScheduleKeyInterval:
		return setInt(&s.Interval, key, value)
	case ScheduleKeyDay:
		return setInt(&s.Day, key, value)
	}

	return fmt.Errorf("unknown schedule key %q", key)
}

// Validate checks the fields the scheduler depends on.
func (s *Schedule) Validate() error {
	if s.Interval < IntervalDaily || s.Interval > IntervalYearly {
		return fmt.Errorf("interval %d out of range", s.Interval)
	}

	if _, _, err := ParseClock(s.Time); err != nil {
		return err
	}

	switch s.Interval {
	case IntervalWeekly, IntervalFortnightly:
		if s.Day < 0 || s.Day > 6 {
			return fmt.Errorf("day %d is not a weekday (0-6)", s.Day)
		}
	default:
		if s.Day < 1 || s.Day > 31 {
			return fmt.Errorf("day %d is not a day of month (1-31)", s.Day)
		}
	}

	if s.DatePosition != "" && s.DatePosition != DatePositionStart && s.DatePosition != DatePositionEnd {
		return fmt.Errorf("date position %q must be %q or %q", s.DatePosition, DatePositionStart, DatePositionEnd)
	}

	return nil
}

// SelectPanelDetails keeps the details whose panel id is listed in Panels.
func (s *Schedule) SelectPanelDetails(details []*PanelDetail) []*PanelDetail {
	wanted := make(map[int]struct{}, len(s.Panels))
	for _, id := range s.Panels {
		wanted[id] = struct{}{}
	}

	selected := NewPanelDetails()
	for _, d := range details {
		if _, ok := wanted[d.PanelID]; ok {
			selected = append(selected, d)
		}
	}
	return selected
}

// ParseClock parses "HH:MM". The empty string is midnight.
func ParseClock(clock string) (int, int, error) {
	if clock == "" {
		return 0, 0, nil
	}

	var hour, minute int
	n, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q is out of range", clock)
	}

	return hour, minute, nil
}

func setString(field *string, key ScheduleKey, value interface{}) error {
	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("schedule key %q expects a string, got %T", key, value)
	}
	*field = v
	return nil
}

func setInt(field *int, key ScheduleKey, value interface{}) error {
	switch v := value.(type) {
	case int:
		*field = v
	case int64:
		*field = int(v)
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("schedule key %q expects an integer, got %v", key, v)
		}
		*field = int(v)
	default:
		return fmt.Errorf("schedule key %q expects a number, got %T", key, value)
	}
	return nil
}

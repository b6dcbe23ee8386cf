package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/grafana"
	"report-scheduler/pkg/print"
	"report-scheduler/pkg/schedule"
	"report-scheduler/pkg/send"
)

// Directory resolves the people and panels a report refers to.
type Directory interface {
	UserEmails(ctx context.Context, userIDs []string) ([]string, error)
	PanelDetails(ctx context.Context) ([]*apis.PanelDetail, error)
}

// Reporter runs a schedule through render, assemble and deliver.
type Reporter struct {
	NewDirectory func(settings *apis.Settings) Directory
	NewRenderer  func(settings *apis.Settings) (print.Renderer, func(), error)
	NewMailer    func(settings *apis.Settings) (send.Mailer, error)
	Webhook      func(ctx context.Context, webhookURL, secret, text, scheduleName string) error
	Notify       func(ctx context.Context, appID, appSecret, filePath, message, scheduleName string) error

	Now     func() time.Time
	Timeout time.Duration
}

func NewReporter() *Reporter {
	return &Reporter{
		NewDirectory: func(settings *apis.Settings) Directory {
			return grafana.NewClient(settings)
		},
		NewRenderer: func(settings *apis.Settings) (print.Renderer, func(), error) {
			renderer := print.NewRodRenderer(settings.GrafanaUsername, settings.GrafanaPassword)
			if err := renderer.Open(); err != nil {
				return nil, nil, err
			}
			return renderer, renderer.Close, nil
		},
		NewMailer: func(settings *apis.Settings) (send.Mailer, error) {
			return send.NewSMTPMailer(settings)
		},
		Webhook: send.Webhook,
		Notify:  send.Notify,
		Now:     time.Now,
		Timeout: 15 * time.Minute,
	}
}

// Report delivers one run of the schedule. Whatever the outcome, the run is
// recorded and, when the schedule was due, its next report time moves forward.
func (r *Reporter) Report(s *apis.Schedule) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	start := r.Now().In(common.Location)
	record := apis.NewRecord()
	record.ID = common.GetUUID()
	record.ScheduleID = s.ID
	record.Name = s.Name
	record.StartTime = start.Format(time.DateTime)
	record.State = apis.RecordStateRunning
	record.FileName = common.GetReportFileName(s.Name, s.DateFormat, s.DatePosition, start)

	if err := db.CreateRecord(record); err != nil {
		logrus.Errorf("[Report] Failed to create record for schedule %s: %v", s.ID, err)
	}

	recipients, err := r.deliver(ctx, s, record.ID, record.FileName)
	record.Recipients = strings.Join(recipients, ",")

	r.advance(s, start)

	record.EndTime = r.Now().In(common.Location).Format(time.DateTime)
	if err != nil {
		record.State = apis.RecordStateFailed
		record.ErrMessage = err.Error()
	} else {
		record.State = apis.RecordStateSent
	}
	if uerr := db.UpdateRecord(record); uerr != nil {
		logrus.Errorf("[Report] Failed to close record %s: %v", record.ID, uerr)
	}

	return err
}

// advance moves the stored next report time on from start. It works on the
// stored schedule, which an edit may have changed while the run was going,
// and leaves it alone when the run happened ahead of time.
func (r *Reporter) advance(s *apis.Schedule, start time.Time) {
	current, err := db.GetSchedule(s.ID)
	if errors.Is(err, db.ErrNotFound) {
		logrus.Infof("[Report] Schedule %s was deleted during the run", s.ID)
		return
	}
	if err != nil {
		logrus.Warnf("[Report] Failed to reload schedule %s: %v", s.ID, err)
		current = s
	}

	if current.NextReportTime > start.Unix() {
		logrus.Debugf("[Report] Schedule %s is not due until %s, keeping it", s.ID,
			time.Unix(current.NextReportTime, 0).In(common.Location).Format(time.DateTime))
		return
	}

	next := schedule.AdvanceReportTime(current, start, common.Location)
	if err = db.SetNextReportTime(s.ID, next.Unix()); err != nil {
		logrus.Errorf("[Report] Failed to advance schedule %s: %v", s.ID, err)
		return
	}
	logrus.Infof("[Report] Schedule %s next reports at %s", s.ID, next.Format(time.DateTime))
}

func (r *Reporter) deliver(ctx context.Context, s *apis.Schedule, recordID, fileName string) ([]string, error) {
	settings, err := db.GetSettings()
	if err != nil {
		return nil, err
	}

	directory := r.NewDirectory(settings)

	recipients, err := r.recipients(ctx, directory, s.ReportGroupID)
	if err != nil {
		return nil, err
	}

	lark := settings.LarkWebhookURL != "" || (settings.LarkAppID != "" && settings.LarkAppSecret != "")
	if len(recipients) == 0 && !lark {
		return nil, fmt.Errorf("schedule %s: %w", s.ID, send.ErrNoRecipients)
	}

	details, err := r.panelDetails(ctx, directory, s)
	if err != nil {
		return recipients, err
	}

	baseURL := grafana.NewClient(settings).BaseURL
	urls := make([]string, 0, len(details))
	for _, detail := range details {
		urls = append(urls, grafana.SoloPanelURL(baseURL, detail, s.Lookback))
	}

	renderer, closeRenderer, err := r.NewRenderer(settings)
	if err != nil {
		return recipients, fmt.Errorf("failed to start renderer: %w", err)
	}
	defer closeRenderer()

	path := filepath.Join(common.ReportDir(recordID), fileName)
	if err = print.PrintPanels(renderer, urls, path); err != nil {
		return recipients, err
	}

	if len(recipients) > 0 {
		mailer, err := r.NewMailer(settings)
		if err != nil {
			return recipients, err
		}

		err = mailer.Send(ctx, &send.Email{
			To:         recipients,
			Subject:    "Report: " + s.Name,
			Body:       s.Description,
			Attachment: path,
		})
		if err != nil {
			return recipients, err
		}
	}

	r.notifyLark(ctx, settings, s, path, len(recipients))
	return recipients, nil
}

// Lark delivery is best effort; the e-mail is the report of record.
func (r *Reporter) notifyLark(ctx context.Context, settings *apis.Settings, s *apis.Schedule, path string, mailed int) {
	text := fmt.Sprintf("Report %q generated with %d panel(s), mailed to %d recipient(s).", s.Name, len(s.Panels), mailed)

	if settings.LarkWebhookURL != "" {
		if err := r.Webhook(ctx, settings.LarkWebhookURL, settings.LarkSecret, text, s.Name); err != nil {
			logrus.Warnf("[Report] Lark webhook for schedule %s failed: %v", s.ID, err)
		}
	}

	if settings.LarkAppID != "" && settings.LarkAppSecret != "" {
		if err := r.Notify(ctx, settings.LarkAppID, settings.LarkAppSecret, path, text, s.Name); err != nil {
			logrus.Warnf("[Report] Lark notify for schedule %s failed: %v", s.ID, err)
		}
	}
}

func (r *Reporter) recipients(ctx context.Context, directory Directory, groupID string) ([]string, error) {
	if groupID == "" {
		return []string{}, nil
	}

	userIDs, err := db.GroupMemberUserIDs(groupID)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return []string{}, nil
	}

	return directory.UserEmails(ctx, userIDs)
}

// panelDetails completes stored details that only carry a panel id with the
// dashboard they live on.
func (r *Reporter) panelDetails(ctx context.Context, directory Directory, s *apis.Schedule) ([]*apis.PanelDetail, error) {
	details := make([]*apis.PanelDetail, 0, len(s.PanelDetails))
	missing := false
	for _, d := range s.PanelDetails {
		if d.DashboardID == "" {
			missing = true
		}
		details = append(details, d)
	}

	if missing {
		known, err := directory.PanelDetails(ctx)
		if err != nil {
			return nil, err
		}
		byPanel := make(map[int]*apis.PanelDetail, len(known))
		dashboards := make(map[int]int, len(known))
		for _, k := range known {
			dashboards[k.PanelID]++
			if _, ok := byPanel[k.PanelID]; !ok {
				byPanel[k.PanelID] = k
			}
		}

		resolved := details[:0]
		for _, d := range details {
			if d.DashboardID == "" {
				k, ok := byPanel[d.PanelID]
				if !ok {
					logrus.Warnf("[Report] Panel %d of schedule %s no longer exists", d.PanelID, s.ID)
					continue
				}
				if n := dashboards[d.PanelID]; n > 1 {
					logrus.Warnf("[Report] Panel %d of schedule %s exists on %d dashboards, using %s",
						d.PanelID, s.ID, n, k.DashboardID)
				}
				c := *d
				c.DashboardID = k.DashboardID
				if c.Title == "" {
					c.Title = k.Title
				}
				d = &c
			}
			resolved = append(resolved, d)
		}
		details = resolved
	}

	if len(details) == 0 {
		return nil, fmt.Errorf("schedule %s has no panels", s.ID)
	}
	return details, nil
}

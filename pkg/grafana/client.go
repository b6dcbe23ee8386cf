package grafana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

// Client talks to the Grafana HTTP API with basic auth.
type Client struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

type OrgUser struct {
	UserID int    `json:"userId"`
	Email  string `json:"email"`
	Login  string `json:"login"`
	Name   string `json:"name"`
}

type DashboardHit struct {
	ID    int    `json:"id"`
	UID   string `json:"uid"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type Panel struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Type   string   `json:"type"`
	Panels []*Panel `json:"panels"`
}

type dashboardResponse struct {
	Dashboard struct {
		UID    string   `json:"uid"`
		Title  string   `json:"title"`
		Panels []*Panel `json:"panels"`
		Rows   []struct {
			Panels []*Panel `json:"panels"`
		} `json:"rows"`
	} `json:"dashboard"`
}

// NewClient falls back to common.GrafanaURL when the settings carry no URL.
func NewClient(settings *apis.Settings) *Client {
	baseURL := settings.GrafanaURL
	if baseURL == "" {
		baseURL = common.GrafanaURL
	}

	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: settings.GrafanaUsername,
		Password: settings.GrafanaPassword,
		HTTP:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s expect 200 status but got %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// OrgUsers lists the users of the current organisation.
func (c *Client) OrgUsers(ctx context.Context) ([]*OrgUser, error) {
	var users []*OrgUser
	if err := c.get(ctx, "/api/org/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserEmails resolves Grafana user ids to e-mail addresses, skipping ids
// that no longer exist and users without an address.
func (c *Client) UserEmails(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return []string{}, nil
	}

	users, err := c.OrgUsers(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*OrgUser, len(users))
	for _, u := range users {
		byID[strconv.Itoa(u.UserID)] = u
	}

	seen := make(map[string]struct{})
	emails := []string{}
	for _, id := range userIDs {
		u, ok := byID[id]
		if !ok {
			logrus.Warnf("[Grafana] User %s is not a member of the organisation", id)
			continue
		}
		if u.Email == "" {
			continue
		}
		if _, dup := seen[u.Email]; dup {
			continue
		}
		seen[u.Email] = struct{}{}
		emails = append(emails, u.Email)
	}

	return emails, nil
}

func (c *Client) SearchDashboards(ctx context.Context) ([]*DashboardHit, error) {
	var hits []*DashboardHit
	if err := c.get(ctx, "/api/search?type=dash-db", &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// Panels returns the leaf panels of a dashboard, flattening rows.
func (c *Client) Panels(ctx context.Context, uid string) ([]*Panel, error) {
	var resp dashboardResponse
	if err := c.get(ctx, "/api/dashboards/uid/"+url.PathEscape(uid), &resp); err != nil {
		return nil, err
	}

	panels := flatten(resp.Dashboard.Panels)
	for _, row := range resp.Dashboard.Rows {
		panels = append(panels, flatten(row.Panels)...)
	}
	return panels, nil
}

func flatten(panels []*Panel) []*Panel {
	out := []*Panel{}
	for _, p := range panels {
		if p.Type == "row" {
			out = append(out, flatten(p.Panels)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// PanelDetails lists every panel of every dashboard as a selectable report panel.
// Dashboards are fetched concurrently, at most four at a time.
func (c *Client) PanelDetails(ctx context.Context) ([]*apis.PanelDetail, error) {
	hits, err := c.SearchDashboards(ctx)
	if err != nil {
		return nil, err
	}

	perDashboard := make([][]*Panel, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			panels, err := c.Panels(gctx, hit.UID)
			if err != nil {
				return fmt.Errorf("dashboard %s: %w", hit.UID, err)
			}
			perDashboard[i] = panels
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	details := apis.NewPanelDetails()
	for i, hit := range hits {
		for _, p := range perDashboard[i] {
			details = append(details, &apis.PanelDetail{
				PanelID:     p.ID,
				DashboardID: hit.UID,
				Title:       p.Title,
				Type:        p.Type,
			})
		}
	}

	sort.SliceStable(details, func(i, j int) bool {
		if details[i].DashboardID != details[j].DashboardID {
			return details[i].DashboardID < details[j].DashboardID
		}
		return details[i].PanelID < details[j].PanelID
	})

	return details, nil
}

// SoloPanelURL is the standalone render page of a panel. The detail's own
// lookback wins over the schedule's.
func SoloPanelURL(baseURL string, detail *apis.PanelDetail, lookback string) string {
	query := url.Values{}
	query.Set("panelId", strconv.Itoa(detail.PanelID))

	if detail.Lookback != "" {
		lookback = detail.Lookback
	}
	if lookback != "" {
		query.Set("from", "now-"+lookback)
		query.Set("to", "now")
	}

	u := strings.TrimRight(baseURL, "/") + "/d-solo/" + url.PathEscape(detail.DashboardID) + "/?" + query.Encode()
	if vars := strings.TrimPrefix(detail.Variables, "&"); vars != "" {
		u += "&" + vars
	}
	return u
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

// APIError is a non-2xx answer from the plugin backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client calls the plugin's REST endpoints. PluginID addresses the app's
// generic settings, DatasourceID the datasource's resource routes.
type Client struct {
	BaseURL      string
	PluginID     string
	DatasourceID string
	HTTP         *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		PluginID:     common.PluginID,
		DatasourceID: common.DatasourceID,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) pluginPath(path string) string {
	return c.BaseURL + "/api/plugins/" + url.PathEscape(c.PluginID) + path
}

func (c *Client) resourcePath(path string) string {
	return c.BaseURL + "/api/plugins/" + url.PathEscape(c.DatasourceID) + "/resources" + path
}

func (c *Client) do(ctx context.Context, method, u string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		errResp := &common.ErrorResponse{}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ListSchedules(ctx context.Context) ([]*apis.Schedule, error) {
	schedules := apis.NewSchedules()
	if err := c.do(ctx, http.MethodGet, c.resourcePath("/schedules"), nil, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// SchedulesQuery is the query cached under ReportSchedulesKey.
func (c *Client) SchedulesQuery() QueryFunc {
	return func(ctx context.Context) (interface{}, error) {
		return c.ListSchedules(ctx)
	}
}

func (c *Client) GetScheduleByID(ctx context.Context, id string) (*apis.Schedule, error) {
	s := apis.NewSchedule()
	if err := c.do(ctx, http.MethodGet, c.resourcePath("/schedules/"+url.PathEscape(id)), nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) CreateSchedule(ctx context.Context, s *apis.Schedule) (*apis.Schedule, error) {
	created := apis.NewSchedule()
	if err := c.do(ctx, http.MethodPost, c.resourcePath("/schedules"), s, created); err != nil {
		return nil, err
	}
	return created, nil
}

// ReplaceSchedule overwrites a whole schedule.
func (c *Client) ReplaceSchedule(ctx context.Context, s *apis.Schedule) (*apis.Schedule, error) {
	updated := apis.NewSchedule()
	if err := c.do(ctx, http.MethodPut, c.resourcePath("/schedules/"+url.PathEscape(s.ID)), s, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSchedule patches one field of a schedule.
func (c *Client) UpdateSchedule(ctx context.Context, id string, key apis.ScheduleKey, value interface{}) (*apis.Schedule, error) {
	updated := apis.NewSchedule()
	patch := &apis.SchedulePatch{Key: key, Value: value}
	if err := c.do(ctx, http.MethodPatch, c.resourcePath("/schedules/"+url.PathEscape(id)), patch, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.resourcePath("/schedules/"+url.PathEscape(id)), nil, nil)
}

// SendSchedule asks the backend to report a schedule now.
func (c *Client) SendSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.resourcePath("/schedules/"+url.PathEscape(id)+"/send"), nil, nil)
}

func (c *Client) GetReportGroups(ctx context.Context) ([]*apis.ReportGroup, error) {
	groups := apis.NewReportGroups()
	if err := c.do(ctx, http.MethodGet, c.resourcePath("/report-groups"), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) GetPanels(ctx context.Context) ([]*apis.PanelDetail, error) {
	details := apis.NewPanelDetails()
	if err := c.do(ctx, http.MethodGet, c.resourcePath("/panels"), nil, &details); err != nil {
		return nil, err
	}
	return details, nil
}

func (c *Client) GetPluginMeta(ctx context.Context) (*apis.PluginMeta, error) {
	meta := apis.NewPluginMeta(c.PluginID)
	if err := c.do(ctx, http.MethodGet, c.pluginPath("/settings"), nil, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *Client) UpdatePluginMeta(ctx context.Context, update *apis.PluginMetaUpdate) (*apis.PluginMeta, error) {
	meta := apis.NewPluginMeta(c.PluginID)
	if err := c.do(ctx, http.MethodPost, c.pluginPath("/settings"), update, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *Client) UpdateDatasourceSettings(ctx context.Context, settings *apis.Settings) error {
	return c.do(ctx, http.MethodPost, c.resourcePath("/settings"), settings, nil)
}

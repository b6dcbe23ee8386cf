package client

import (
	"context"
	"encoding/json"
	"errors"

	"report-scheduler/pkg/apis"
)

type Reloader interface {
	Reload()
}

type ReloaderFunc func()

func (f ReloaderFunc) Reload() { f() }

type SettingsAPI interface {
	UpdatePluginMeta(ctx context.Context, update *apis.PluginMetaUpdate) (*apis.PluginMeta, error)
	UpdateDatasourceSettings(ctx context.Context, settings *apis.Settings) error
}

// AppConfiguration is the plugin configuration page.
type AppConfiguration struct {
	API      SettingsAPI
	Reloader Reloader
	Meta     *apis.PluginMeta
}

func NewAppConfiguration(api SettingsAPI, reloader Reloader, meta *apis.PluginMeta) *AppConfiguration {
	return &AppConfiguration{API: api, Reloader: reloader, Meta: meta}
}

// ToggleAppState enables or disables the plugin, pinning it alongside, and
// reloads the page.
func (a *AppConfiguration) ToggleAppState(ctx context.Context, enabled bool) error {
	update := &apis.PluginMetaUpdate{
		Enabled: &enabled,
		Pinned:  &enabled,
	}
	if a.Meta != nil {
		update.JSONData = a.Meta.JSONData
	}

	meta, err := a.API.UpdatePluginMeta(ctx, update)
	if err != nil {
		return err
	}
	a.Meta = meta

	if a.Reloader != nil {
		a.Reloader.Reload()
	}
	return nil
}

// Submit saves the datasource settings and mirrors the non-secret values
// into the plugin meta. Both requests are sent even if one of them fails.
func (a *AppConfiguration) Submit(ctx context.Context, values *apis.Settings) error {
	settingsErr := a.API.UpdateDatasourceSettings(ctx, values)

	jsonData, err := toJSONData(values.Redacted())
	if err != nil {
		return errors.Join(settingsErr, err)
	}

	update := &apis.PluginMetaUpdate{JSONData: jsonData}
	if a.Meta != nil {
		enabled, pinned := a.Meta.Enabled, a.Meta.Pinned
		update.Enabled, update.Pinned = &enabled, &pinned
	}
	meta, metaErr := a.API.UpdatePluginMeta(ctx, update)
	if metaErr == nil {
		a.Meta = meta
	}

	return errors.Join(settingsErr, metaErr)
}

// DefaultFormValues reads the form's starting values out of the meta's jsonData.
func (a *AppConfiguration) DefaultFormValues() *apis.Settings {
	values := apis.NewSettings()
	if a.Meta == nil || len(a.Meta.JSONData) == 0 {
		return values
	}

	data, err := json.Marshal(a.Meta.JSONData)
	if err != nil {
		return values
	}
	if err = json.Unmarshal(data, values); err != nil {
		return apis.NewSettings()
	}
	return values
}

func toJSONData(settings *apis.Settings) (map[string]interface{}, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}

	jsonData := map[string]interface{}{}
	if err = json.Unmarshal(data, &jsonData); err != nil {
		return nil, err
	}
	return jsonData, nil
}

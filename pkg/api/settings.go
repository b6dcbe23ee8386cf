package api

import (
	"net/http"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/config"
	"report-scheduler/pkg/db"
)

func GetPluginSettings() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		meta, err := config.ReadPluginMeta()
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, meta)
	})
}

// UpdatePluginSettings merges the posted fields over the stored plugin meta.
func UpdatePluginSettings() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		update := &apis.PluginMetaUpdate{}
		if err := decodeBody(req, update); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}

		meta, err := config.UpdatePluginMeta(func(meta *apis.PluginMeta) {
			if update.Enabled != nil {
				meta.Enabled = *update.Enabled
			}
			if update.Pinned != nil {
				meta.Pinned = *update.Pinned
			}
			if update.JSONData != nil {
				meta.JSONData = update.JSONData
			}
		})
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, meta)
	})
}

func GetDatasourceSettings() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		settings, err := db.GetSettings()
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, settings.Redacted())
	})
}

// SaveDatasourceSettings stores the posted settings. Secrets left blank keep
// their stored value, since reads never return them.
func SaveDatasourceSettings() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		stored, err := db.GetSettings()
		if err != nil {
			handleError(rw, err)
			return
		}

		settings := apis.NewSettings()
		if err = decodeBody(req, settings); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}

		keepSecret(&settings.GrafanaPassword, stored.GrafanaPassword)
		keepSecret(&settings.EmailPassword, stored.EmailPassword)
		keepSecret(&settings.LarkSecret, stored.LarkSecret)
		keepSecret(&settings.LarkAppSecret, stored.LarkAppSecret)

		if err = db.SaveSettings(settings); err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, settings.Redacted())
	})
}

func keepSecret(secret *string, stored string) {
	if *secret == "" {
		*secret = stored
	}
}

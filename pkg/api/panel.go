package api

import (
	"net/http"

	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/grafana"
)

// ListPanel lists every dashboard panel a schedule can include.
func ListPanel() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		settings, err := db.GetSettings()
		if err != nil {
			handleError(rw, err)
			return
		}

		details, err := grafana.NewClient(settings).PanelDetails(req.Context())
		if err != nil {
			common.HandleError(rw, http.StatusInternalServerError, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, details)
	})
}

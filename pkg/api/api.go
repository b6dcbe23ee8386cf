package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
)

// RequirePlugin answers 404 when the {pluginId} route variable is not the
// id returned by expected.
func RequirePlugin(expected func() string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			pluginID := mux.Vars(req)["pluginId"]
			if pluginID != expected() {
				common.HandleError(rw, http.StatusNotFound, fmt.Errorf("plugin %s not found", pluginID))
				return
			}
			next.ServeHTTP(rw, req)
		})
	}
}

func Healthz() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		common.WriteJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func decodeBody(req *http.Request, v interface{}) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleError maps storage errors onto status codes.
func handleError(rw http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		common.HandleError(rw, http.StatusNotFound, err)
		return
	}
	common.HandleError(rw, http.StatusInternalServerError, err)
}

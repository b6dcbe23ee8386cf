package common

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func HandleError(rw http.ResponseWriter, code int, err error) {
	logrus.Errorf("HTTP %d - %s", code, err.Error())

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	if writeErr := json.NewEncoder(rw).Encode(ErrorResponse{Error: err.Error()}); writeErr != nil {
		logrus.Errorf("Failed to write error message to response: %s", writeErr.Error())
	}
}

// WriteJSON writes data as indented JSON with the given status code.
func WriteJSON(rw http.ResponseWriter, code int, data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		HandleError(rw, http.StatusInternalServerError, err)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	if _, err := rw.Write(jsonData); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
)

func ListRecord() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		records, err := db.ListRecord(req.URL.Query().Get("scheduleId"))
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, records)
	})
}

func GetRecord() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		record, err := db.GetRecord(mux.Vars(req)["id"])
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, record)
	})
}

// DeleteRecord removes a run and the PDF it produced.
func DeleteRecord() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		recordID := mux.Vars(req)["id"]

		if err := db.DeleteRecord(recordID); err != nil {
			handleError(rw, err)
			return
		}

		if err := common.DeletePath(common.ReportDir(recordID)); err != nil {
			logrus.Warnf("[File] Failed to remove report files of record %s: %v", recordID, err)
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

// GetRecordFile downloads the PDF a run produced.
func GetRecordFile() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		record, err := db.GetRecord(mux.Vars(req)["id"])
		if err != nil {
			handleError(rw, err)
			return
		}

		filePath := filepath.Join(common.ReportDir(record.ID), record.FileName)
		if record.FileName == "" || !common.FileExists(filePath) {
			common.HandleError(rw, http.StatusNotFound, fmt.Errorf("record %s has no report file", record.ID))
			return
		}

		file, err := os.Open(filePath)
		if err != nil {
			common.HandleError(rw, http.StatusInternalServerError, err)
			return
		}
		defer func() {
			if err := file.Close(); err != nil {
				logrus.Warnf("[File] Failed to close file %s: %v", filePath, err)
			}
		}()

		fileInfo, err := file.Stat()
		if err != nil {
			common.HandleError(rw, http.StatusInternalServerError, err)
			return
		}

		rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
		rw.Header().Set("Content-Type", "application/pdf")
		rw.Header().Set("Content-Length", fmt.Sprint(fileInfo.Size()))

		if _, err := io.Copy(rw, file); err != nil {
			logrus.Errorf("[File] Failed to copy file %s to response: %v", filePath, err)
		}
	})
}

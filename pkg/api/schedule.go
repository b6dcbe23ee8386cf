package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/schedule"
)

// Now is the clock used to compute next report times.
var Now = time.Now

func ListSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		schedules, err := db.ListSchedule()
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, schedules)
	})
}

func GetSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		s, err := db.GetSchedule(mux.Vars(req)["id"])
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, s)
	})
}

func CreateSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		s := apis.NewSchedule()
		if err := decodeBody(req, s); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}

		s.ID = common.GetUUID()
		if s.Name == "" {
			s.Name = apis.DefaultScheduleName
		}
		if err := s.Validate(); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}
		s.NextReportTime = schedule.NextReportTime(s, Now(), common.Location).Unix()

		if err := db.CreateSchedule(s); err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusCreated, s)
	})
}

func UpdateSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		scheduleID := mux.Vars(req)["id"]

		existing, err := db.GetSchedule(scheduleID)
		if err != nil {
			handleError(rw, err)
			return
		}

		s := apis.NewSchedule()
		if err = decodeBody(req, s); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}
		s.ID = scheduleID

		saveSchedule(rw, existing, s)
	})
}

// PatchSchedule applies a single {"key", "value"} change.
func PatchSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		existing, err := db.GetSchedule(mux.Vars(req)["id"])
		if err != nil {
			handleError(rw, err)
			return
		}

		patch := &apis.SchedulePatch{}
		if err = decodeBody(req, patch); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}

		s := existing.Clone()
		if err = s.Set(patch.Key, patch.Value); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}

		saveSchedule(rw, existing, s)
	})
}

func saveSchedule(rw http.ResponseWriter, existing, s *apis.Schedule) {
	if err := s.Validate(); err != nil {
		common.HandleError(rw, http.StatusBadRequest, err)
		return
	}

	if timingChanged(existing, s) || existing.NextReportTime == 0 {
		s.NextReportTime = schedule.NextReportTime(s, Now(), common.Location).Unix()
	} else {
		s.NextReportTime = existing.NextReportTime
	}

	if err := db.UpdateSchedule(s); err != nil {
		handleError(rw, err)
		return
	}

	updated, err := db.GetSchedule(s.ID)
	if err != nil {
		handleError(rw, err)
		return
	}

	common.WriteJSON(rw, http.StatusOK, updated)
}

func timingChanged(a, b *apis.Schedule) bool {
	return a.Interval != b.Interval || a.Time != b.Time || a.Day != b.Day
}

func DeleteSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := db.DeleteSchedule(mux.Vars(req)["id"]); err != nil {
			handleError(rw, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

// SendSchedule reports a schedule right away on the default dispatcher.
func SendSchedule() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		scheduleID := mux.Vars(req)["id"]

		if schedule.Default == nil {
			common.HandleError(rw, http.StatusServiceUnavailable, errors.New("scheduler is not running"))
			return
		}

		err := schedule.Default.RunNow(scheduleID)
		if errors.Is(err, schedule.ErrAlreadyRunning) {
			common.HandleError(rw, http.StatusConflict, err)
			return
		}
		if err != nil {
			handleError(rw, err)
			return
		}

		logrus.Infof("[Schedule] Schedule %s queued for sending", scheduleID)
		common.WriteJSON(rw, http.StatusAccepted, map[string]string{"id": scheduleID})
	})
}

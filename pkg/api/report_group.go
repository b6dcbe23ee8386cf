package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
	"report-scheduler/pkg/db"
)

func ListReportGroup() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		groups, err := db.ListReportGroup()
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, groups)
	})
}

func GetReportGroup() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		group, err := db.GetReportGroup(mux.Vars(req)["id"])
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, group)
	})
}

func CreateReportGroup() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		group := apis.NewReportGroup()
		if err := decodeBody(req, group); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}
		if group.Name == "" {
			common.HandleError(rw, http.StatusBadRequest, errors.New("report group name is required"))
			return
		}

		group.ID = common.GetUUID()
		if err := db.CreateReportGroup(group); err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusCreated, group)
	})
}

func UpdateReportGroup() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		group := apis.NewReportGroup()
		if err := decodeBody(req, group); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}
		if group.Name == "" {
			common.HandleError(rw, http.StatusBadRequest, errors.New("report group name is required"))
			return
		}

		group.ID = mux.Vars(req)["id"]
		if err := db.UpdateReportGroup(group); err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, group)
	})
}

func DeleteReportGroup() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := db.DeleteReportGroup(mux.Vars(req)["id"]); err != nil {
			handleError(rw, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

func ListMember() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		groupID := mux.Vars(req)["id"]
		if _, err := db.GetReportGroup(groupID); err != nil {
			handleError(rw, err)
			return
		}

		memberships, err := db.ListMembership(groupID)
		if err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusOK, memberships)
	})
}

func CreateMember() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		groupID := mux.Vars(req)["id"]
		if _, err := db.GetReportGroup(groupID); err != nil {
			handleError(rw, err)
			return
		}

		membership := apis.NewReportGroupMembership()
		if err := decodeBody(req, membership); err != nil {
			common.HandleError(rw, http.StatusBadRequest, err)
			return
		}
		if membership.UserID == "" {
			common.HandleError(rw, http.StatusBadRequest, errors.New("userID is required"))
			return
		}

		membership.ID = common.GetUUID()
		membership.ReportGroupID = groupID
		if err := db.CreateMembership(membership); err != nil {
			handleError(rw, err)
			return
		}

		common.WriteJSON(rw, http.StatusCreated, membership)
	})
}

func DeleteMember() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := db.DeleteMembership(mux.Vars(req)["id"]); err != nil {
			handleError(rw, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

package server

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"

	"report-scheduler/pkg/api"
	"report-scheduler/pkg/common"
)

func Start() http.Handler {
	router := mux.NewRouter()
	router.UseEncodedPath()

	debugHandle(router)

	router.Methods(http.MethodGet).Path("/healthz").Handler(api.Healthz())

	plugin := router.PathPrefix("/api/plugins/{pluginId}").Subrouter()

	app := api.RequirePlugin(func() string { return common.PluginID })
	plugin.Methods(http.MethodGet).Path("/settings").Handler(app(api.GetPluginSettings()))
	plugin.Methods(http.MethodPost).Path("/settings").Handler(app(api.UpdatePluginSettings()))

	resources := plugin.PathPrefix("/resources").Subrouter()
	resources.Use(api.RequirePlugin(func() string { return common.DatasourceID }))
	ResourceRoutes(resources)

	return router
}

// ResourceRoutes registers the plugin resource endpoints on r. The backend
// plugin mounts the same routes on its own router.
func ResourceRoutes(r *mux.Router) {
	r.Methods(http.MethodGet).Path("/settings").Handler(api.GetDatasourceSettings())
	r.Methods(http.MethodPost).Path("/settings").Handler(api.SaveDatasourceSettings())

	r.Methods(http.MethodGet).Path("/schedules").Handler(api.ListSchedule())
	r.Methods(http.MethodPost).Path("/schedules").Handler(api.CreateSchedule())
	r.Methods(http.MethodGet).Path("/schedules/{id}").Handler(api.GetSchedule())
	r.Methods(http.MethodPut).Path("/schedules/{id}").Handler(api.UpdateSchedule())
	r.Methods(http.MethodPatch).Path("/schedules/{id}").Handler(api.PatchSchedule())
	r.Methods(http.MethodDelete).Path("/schedules/{id}").Handler(api.DeleteSchedule())
	r.Methods(http.MethodPost).Path("/schedules/{id}/send").Handler(api.SendSchedule())

	r.Methods(http.MethodGet).Path("/report-groups").Handler(api.ListReportGroup())
	r.Methods(http.MethodPost).Path("/report-groups").Handler(api.CreateReportGroup())
	r.Methods(http.MethodGet).Path("/report-groups/{id}").Handler(api.GetReportGroup())
	r.Methods(http.MethodPut).Path("/report-groups/{id}").Handler(api.UpdateReportGroup())
	r.Methods(http.MethodDelete).Path("/report-groups/{id}").Handler(api.DeleteReportGroup())
	r.Methods(http.MethodGet).Path("/report-groups/{id}/members").Handler(api.ListMember())
	r.Methods(http.MethodPost).Path("/report-groups/{id}/members").Handler(api.CreateMember())
	r.Methods(http.MethodDelete).Path("/report-group-memberships/{id}").Handler(api.DeleteMember())

	r.Methods(http.MethodGet).Path("/panels").Handler(api.ListPanel())

	r.Methods(http.MethodGet).Path("/records").Handler(api.ListRecord())
	r.Methods(http.MethodGet).Path("/records/{id}").Handler(api.GetRecord())
	r.Methods(http.MethodDelete).Path("/records/{id}").Handler(api.DeleteRecord())
	r.Methods(http.MethodGet).Path("/records/{id}/file").Handler(api.GetRecordFile())
}

func debugHandle(router *mux.Router) {
	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)

	router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	router.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	router.Handle("/debug/pprof/block", pprof.Handler("block"))
	router.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
}

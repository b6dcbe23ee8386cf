package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/resource/httpadapter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"report-scheduler/pkg/common"
	"report-scheduler/pkg/config"
	"report-scheduler/pkg/core"
	"report-scheduler/pkg/db"
	"report-scheduler/pkg/schedule"
	"report-scheduler/pkg/server"
)

var (
	VERSION = "dev"
	port    int
)

func main() {
	app := cli.NewApp()
	app.Name = "report-scheduler"
	app.Version = VERSION
	app.Usage = "Renders Grafana panels into PDF reports and mails them on a schedule."
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:        "port",
			EnvVar:      "HTTP_PORT",
			Value:       8080,
			Usage:       "The report scheduler listen port.",
			Destination: &port,
		},
		cli.BoolFlag{
			Name:   "debug",
			EnvVar: "LOG_LEVEL",
			Usage:  "Set log level to debug.",
		},
		cli.StringFlag{
			Name:   "work-dir",
			EnvVar: "WORK_DIR",
			Value:  common.WorkDir,
			Usage:  "Directory for the database, plugin config and generated reports.",
		},
		cli.StringFlag{
			Name:   "plugin-id",
			EnvVar: "PLUGIN_ID",
			Value:  common.PluginID,
			Usage:  "The Grafana app plugin id whose settings are served under /api/plugins/{pluginId}/settings.",
		},
		cli.StringFlag{
			Name:   "datasource-id",
			EnvVar: "DATASOURCE_ID",
			Value:  common.DatasourceID,
			Usage:  "The datasource plugin id serving /api/plugins/{pluginId}/resources.",
		},
		cli.StringFlag{
			Name:   "grafana-url",
			EnvVar: "GRAFANA_URL",
			Value:  common.GrafanaURL,
			Usage:  "Grafana base url used when the datasource settings carry none.",
		},
		cli.DurationFlag{
			Name:   "poll-interval",
			EnvVar: "POLL_INTERVAL",
			Value:  common.PollInterval,
			Usage:  "How often to look for overdue schedules.",
		},
		cli.StringFlag{
			Name:   "timezone",
			EnvVar: "TZ",
			Usage:  "Timezone schedule times are interpreted in, defaults to local time.",
		},
	}

	app.Action = func(ctx *cli.Context) error {
		if err := schedule.Register(core.NewReporter()); err != nil {
			return err
		}
		defer schedule.Default.Stop()

		router := server.Start()
		logrus.Infof("server running, listening at: %d", port)

		return http.ListenAndServe(fmt.Sprintf(":%d", port), router)
	}
	app.Commands = []cli.Command{
		{
			Name:  "plugin",
			Usage: "Serve the resource API as a Grafana backend plugin.",
			Action: func(ctx *cli.Context) error {
				if err := schedule.Register(core.NewReporter()); err != nil {
					return err
				}
				defer schedule.Default.Stop()

				router := mux.NewRouter()
				router.UseEncodedPath()
				server.ResourceRoutes(router)

				return backend.Serve(backend.ServeOpts{
					CallResourceHandler: httpadapter.New(router),
				})
			},
		},
		{
			Name:  "dispatch",
			Usage: "Report every overdue schedule once and exit.",
			Action: func(ctx *cli.Context) error {
				dispatcher := schedule.NewDispatcher(core.NewReporter())
				started := dispatcher.DispatchOverdue()
				dispatcher.Wait()

				logrus.Infof("dispatched %d overdue schedule(s)", started)
				return nil
			},
		},
	}
	app.Before = before

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func before(ctx *cli.Context) error {
	if ctx.Bool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	workDir := ctx.String("work-dir")
	if workDir != "" && !strings.HasSuffix(workDir, "/") {
		workDir += "/"
	}
	common.WorkDir = workDir
	common.PluginID = ctx.String("plugin-id")
	common.DatasourceID = ctx.String("datasource-id")
	common.GrafanaURL = ctx.String("grafana-url")
	common.PollInterval = ctx.Duration("poll-interval")

	if tz := ctx.String("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		common.Location = loc
	}

	if err := os.MkdirAll(common.WorkDir, 0755); err != nil {
		return err
	}

	err := db.Register()
	if err != nil {
		return err
	}

	err = config.Register()
	if err != nil {
		return err
	}

	return nil
}

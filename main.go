package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/thrasher-corp/goose"
	"github.com/urfave/cli/v2"

	"github.com/thrasher-corp/fcs/config"
	"github.com/thrasher-corp/fcs/core"
	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/signaler"
	"github.com/thrasher-corp/fcs/supervisor"
	"github.com/thrasher-corp/fcs/types"
	"github.com/thrasher-corp/fcs/worker"
)

var (
	databaseFlag = &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Usage:   "PostgreSQL connection string (also FCS_DATABASE)",
	}
	logFlag = &cli.StringFlag{
		Name:    "log",
		Aliases: []string{"v"},
		Usage:   "log level: debug, info, warn or error (also FCS_LOG)",
	}
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		Aliases: []string{"l"},
		Usage:   "address for the task ingestion HTTP API",
		Value:   "localhost:8000",
	}
	idFlag = &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Usage:    "this worker's UUID; must be unique across the cluster",
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:    "fcs",
		Usage:   "distributed task scheduler on top of PostgreSQL",
		Version: core.VersionString(),
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "create or upgrade the database schema",
				Flags:  []cli.Flag{databaseFlag, logFlag},
				Action: initAction,
			},
			{
				Name:   "supervise",
				Usage:  "run the supervisor; exactly one per cluster",
				Flags:  []cli.Flag{databaseFlag, logFlag},
				Action: superviseAction,
			},
			{
				Name:   "work",
				Usage:  "run a worker and its task ingestion HTTP API",
				Flags:  []cli.Flag{databaseFlag, logFlag, listenFlag, idFlag},
				Action: workAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorln(log.Global, err)
		os.Exit(1)
	}
}

// setup assembles settings from defaults, the environment and command line
// flags, then configures logging and prints the banner
func setup(c *cli.Context) (*config.Config, error) {
	cfg := config.New()
	if c.IsSet("database") {
		cfg.DatabaseURL = c.String("database")
	}
	if c.IsSet("log") {
		cfg.LogLevel = c.String("log")
	}

	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Infof(log.Global, "%s\n%s", core.Banner, core.VersionString())
	log.Debugf(log.ConfigMgr,
		"Heartbeat interval %s, heartbeat timeout %s, maintenance interval %s",
		cfg.HeartbeatInterval, cfg.HeartbeatTimeout, cfg.MaintenanceInterval)

	return cfg, nil
}

func initAction(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = db.CloseConnection() }()

	log.Infoln(log.DatabaseMgr, "Setting up the database")

	if err := goose.Run("up", db.GetSQL(), "postgres", database.MigrationDir, ""); err != nil {
		return fmt.Errorf("couldn't set up the database: %w", err)
	}

	log.Infoln(log.DatabaseMgr, "Done")

	return nil
}

func superviseAction(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := supervisor.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	errs := make(chan error, 1)
	go func() { errs <- s.Run(ctx) }()

	select {
	case err := <-errs:
		return err
	case sig := <-signaler.WaitForInterrupt():
		log.Infof(log.Global, "Captured %v, shutting down", sig)
		cancel()
		return <-errs
	}
}

func workAction(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	id, err := types.ParseWorkerID(c.String("id"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := worker.New(ctx, cfg, id)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	server := &http.Server{
		Addr:    c.String("listen"),
		Handler: worker.NewRouter(w.DB()),
	}

	errs := make(chan error, 2)
	go func() { errs <- w.Run(ctx) }()
	go func() {
		log.Infof(log.RESTSys, "HTTP API listening on http://%s", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		_ = server.Close()
		return err
	case sig := <-signaler.WaitForInterrupt():
		log.Infof(log.Global, "Captured %v, shutting down", sig)
		cancel()
		_ = server.Close()
		return <-errs
	}
}

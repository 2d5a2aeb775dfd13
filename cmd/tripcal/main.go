package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tripcal/internal/cloudsync"
	"tripcal/internal/config"
	"tripcal/internal/export"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/store"
	"tripcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	out        string
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.out != "" {
		conf.Export.Path = flags.out
	}

	appLog.SetFormat(conf.LogFormat)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("tripcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"store_dir", conf.Store.Dir,
		"sync_backend", conf.Sync.Backend,
		"export_path", conf.Export.Path,
		"export_cron", conf.Export.Cron,
		"once", flags.once,
	)

	if err := run(conf, flags); err != nil {
		appLog.Error("tripcal exited with error", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("tripcal exiting")
}

func run(conf *config.Config, flags flagConfig) error {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	local, err := store.OpenBadger(conf.Store.Dir, conf.Store.Key)
	if err != nil {
		return err
	}
	defer func() {
		if err := local.Close(); err != nil {
			appLog.Error("failed to close local store", err)
		}
	}()

	st, err := store.Open(ctx, local, func() *model.Itinerary { return model.Seed(uuid.NewString) })
	if err != nil {
		return err
	}

	job := &export.Job{Source: st, Path: conf.Export.Path, ProductID: conf.Export.ProductID}
	if flags.once {
		return exportOnce(job)
	}

	var syncer *cloudsync.Syncer
	closeRemote := func(context.Context) {}
	if conf.SyncEnabled() {
		syncer, closeRemote, err = startSync(ctx, conf, st)
		if err != nil {
			// Remote trouble never blocks local use.
			appLog.Error("remote sync unavailable, continuing offline", err, "backend", conf.Sync.Backend)
			syncer = nil
			closeRemote = func(context.Context) {}
		}
	}

	var sched *export.Scheduler
	if conf.Export.Path != "" && conf.Export.Path != "-" {
		sched, err = export.Schedule(conf.Export.Cron, job)
		if err != nil {
			return err
		}
	}

	var sc web.SyncControl
	if syncer != nil {
		sc = syncer
	}
	srv := web.NewServer(conf, st, sc, flags.debug)
	serveErr := srv.Serve(ctx)

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cleanupCancel()
	if sched != nil {
		sched.Stop(cleanupCtx)
	}
	if syncer != nil {
		if err := syncer.Close(cleanupCtx); err != nil {
			appLog.Error("final remote save failed", err)
		}
	}
	closeRemote(cleanupCtx)
	return serveErr
}

// exportOnce writes the calendar to the export path, or stdout for "-".
func exportOnce(job *export.Job) error {
	switch job.Path {
	case "":
		return errors.New("no export path: set export.path or pass -out")
	case "-":
		_, err := job.WriteTo(os.Stdout)
		return err
	default:
		return job.Run()
	}
}

// startSync dials the configured backend, pulls the user's record and wires
// store edits to debounced uploads.
func startSync(ctx context.Context, conf *config.Config, st *store.Store) (*cloudsync.Syncer, func(context.Context), error) {
	var (
		remote      cloudsync.Remote
		closeRemote func(context.Context)
	)
	switch conf.Sync.Backend {
	case "redis":
		client, err := cloudsync.DialRedis(ctx, conf.Sync.RedisAddr, conf.Sync.RedisPassword, conf.Sync.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		remote = cloudsync.NewRedisRemote(client, conf.Sync.RedisPrefix)
		closeRemote = func(context.Context) {
			if err := client.Close(); err != nil {
				appLog.Error("redis close failed", err)
			}
		}
	case "mongo":
		m, err := cloudsync.DialMongo(ctx, conf.Sync.MongoURI, conf.Sync.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		remote = m
		closeRemote = func(ctx context.Context) {
			if err := m.Close(ctx); err != nil {
				appLog.Error("mongo disconnect failed", err)
			}
		}
	default:
		return nil, nil, errors.New("unknown sync backend " + conf.Sync.Backend)
	}

	syncer := cloudsync.New(remote, st, conf.Sync.UserID, time.Duration(conf.Sync.DebounceMs)*time.Millisecond)
	if err := syncer.Start(ctx); err != nil {
		appLog.Error("initial remote pull failed", err, "user", conf.Sync.UserID)
	}
	st.OnChange(syncer.Notify)
	return syncer, closeRemote, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./tripcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Write the calendar export once and exit")
	flag.StringVar(&cfg.out, "out", "", "Export path (overrides config; - writes to stdout)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

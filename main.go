package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetroom/src-server/engine"
	"meetroom/src-server/metric"
	"meetroom/src-server/notify"
	"meetroom/src-server/provider"
	"meetroom/src-server/route"
	"meetroom/src-server/scheduler"
	"meetroom/src-server/seed"
	"meetroom/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	as := utils.NewAppState()
	defer as.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// reference data
	if path := as.Config.GetSeedFile(); path != "" {
		f, err := seed.Load(path)
		if err != nil {
			slog.Error("can't load seed file", "error", err)
			os.Exit(1)
		}
		if err := f.Apply(ctx, as.BunDb); err != nil {
			slog.Error("can't apply seed file", "error", err)
			os.Exit(1)
		}
		slog.Info("seed applied", "users", len(f.Users), "locations", len(f.Locations), "virtual_accounts", len(f.VirtualAccounts))
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metric.New(reg)
	metrics.WatchDatabase(ctx, as.BunDb, as.Config.GetMetricCollectionInterval())

	svc := engine.New(as.BunDb, provider.NewRegistry(), engine.WithRecorder(metrics))

	// bookings written before the engine owned them
	if res, err := svc.ReconcileLegacy(ctx); err != nil {
		slog.Error("can't reconcile legacy bookings", "error", err)
	} else {
		slog.Info("legacy bookings reconciled", "linked", res.Linked, "synthesized", res.Synthesized, "drafted", res.Drafted, "skipped", res.Skipped)
	}

	// reminders
	var notifier notify.Notifier = notify.Log{}
	if token := as.Config.GetDiscordAppToken(); token != "" {
		discord, err := notify.NewDiscord(token, as.Config.GetDiscordChannelID())
		if err != nil {
			slog.Error("can't create discord notifier", "error", err)
			os.Exit(1)
		}
		notifier = discord
	}
	sched, err := scheduler.New(as.BunDb, notifier, scheduler.Options{
		Location:     as.Config.GetLocation(),
		ReminderLead: as.Config.GetReminderLead(),
		PurgeSpec:    as.Config.GetActivityPurgeCron(),
		ReminderSpec: as.Config.GetReminderCron(),
		Metrics:      metrics,
	})
	if err != nil {
		slog.Error("can't create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// http server
	muxer := http.NewServeMux()
	route.Metrics(muxer, reg)
	route.FreeSlots(muxer, as, time.Now)
	route.Booking(muxer, svc)
	server := &http.Server{
		Addr:              ":" + as.Config.GetPort(),
		Handler:           muxer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			stop()
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())
	<-ctx.Done()
	slog.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("can't shut down HTTP server", "error", err)
	}
	sched.Stop(shutdownCtx)
}

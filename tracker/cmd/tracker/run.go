package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hiketracker/hiketracker/tracker/internal/alerts"
	"github.com/hiketracker/hiketracker/tracker/internal/api"
	"github.com/hiketracker/hiketracker/tracker/internal/auth"
	"github.com/hiketracker/hiketracker/tracker/internal/config"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
	"github.com/hiketracker/hiketracker/tracker/internal/journal"
	"github.com/hiketracker/hiketracker/tracker/internal/location"
	"github.com/hiketracker/hiketracker/tracker/internal/logging"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
	"github.com/hiketracker/hiketracker/tracker/internal/photosearch"
	"github.com/hiketracker/hiketracker/tracker/internal/pipeline"
	"github.com/hiketracker/hiketracker/tracker/internal/selector"
	"github.com/hiketracker/hiketracker/tracker/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Run loads the config and runs the tracker until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, level, err := logging.New(r.logOut, cfg.Tracker.Log.Format, cfg.Tracker.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Info("tracker starting", "config", configPath)
	slog.Info("config loaded",
		"http_port", cfg.Tracker.HTTPPort,
		"auth_mode", cfg.Tracker.Auth.Mode,
		"location_source", cfg.Location.Source,
		"endpoint", cfg.PhotoSearch.Endpoint,
		"journal", cfg.Journal.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m, err := metrics.New()
	if err != nil {
		return err
	}

	client, err := photosearch.New(cfg.PhotoSearch, photosearch.WithMetrics(m))
	if err != nil {
		return err
	}

	src, ingest := buildSource(cfg.Location)
	filter := location.NewFilter(cfg.Location.MinInterval, cfg.Location.MinDisplacementM)
	builder := geo.NewBuilder(cfg.PhotoSearch.MarginDeg)

	eng := pipeline.NewEngine(pipeline.Options{
		Source:   src,
		Filter:   filter,
		Builder:  builder,
		Fetcher:  client,
		Selector: selector.New(rand.NewSource(time.Now().UnixNano())),
		Metrics:  m,
	})

	// Alerts engine: evaluates rules after every settled fetch.
	alertEngine, err := alerts.New(cfg.Alerts, m)
	if err != nil {
		return err
	}
	eng.OnComplete(func(c pipeline.Completion) {
		if c.Outcome == pipeline.OutcomeCanceled {
			return
		}
		alertEngine.Evaluate(alerts.Input{
			ConsecutiveFailures: c.ConsecutiveFailures,
			Outcome:             c.Outcome,
			FetchSeconds:        c.Duration.Seconds(),
			PhotosStored:        eng.Store().Len(),
		})
	})

	// Optional journal, written off the fetch goroutine.
	var history api.History
	var jrnl *journal.Journal
	writerDone := make(chan struct{})
	writerStop := func() {}
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer jrnl.Close()
		history = jrnl

		if err := jrnl.StartRun(ctx, eng.RunID(), time.Now()); err != nil {
			return err
		}
		w := journal.NewWriter(jrnl, cfg.Journal.BufferSize, m)
		wctx, wcancel := context.WithCancel(context.Background())
		writerStop = wcancel
		go func() {
			defer close(writerDone)
			w.Run(wctx)
		}()
		// Flush and stop the writer before the deferred Close, on every return path.
		defer func() {
			wcancel()
			<-writerDone
		}()
		eng.OnComplete(func(c pipeline.Completion) {
			if c.Result == nil {
				return
			}
			w.Enqueue(journal.Entry{
				RunID:         eng.RunID(),
				InsertedOrder: c.Result.InsertedOrder,
				URL:           c.Result.URL,
				Latitude:      c.Sample.Latitude,
				Longitude:     c.Sample.Longitude,
				SampledAt:     c.Sample.Timestamp,
				FoundAt:       c.Result.FoundAt,
			})
		})
		slog.Info("journal enabled", "path", cfg.Journal.Path, "run_id", eng.RunID())
	} else {
		close(writerDone)
	}

	// Hot reload of the settings that can change without a restart.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			if err := logging.SetLevel(level, next.Tracker.Log.Level); err != nil {
				slog.Warn("config: ignoring log level", "err", err)
			}
			builder.SetMargin(next.PhotoSearch.MarginDeg)
			filter.SetPolicy(next.Location.MinInterval, next.Location.MinDisplacementM)
			slog.Info("config: applied reload",
				"log_level", next.Tracker.Log.Level,
				"margin_deg", next.PhotoSearch.MarginDeg,
				"min_interval", next.Location.MinInterval,
				"min_displacement_m", next.Location.MinDisplacementM,
			)
		})
		if err != nil {
			slog.Error("config: watch stopped", "path", configPath, "err", err)
		}
	}()

	// Websocket observer and REST API on HTTPPort.
	hub := ws.New(eng.Registry())
	deps := api.Deps{Engine: eng, Alerts: alertEngine, History: history}
	if ingest != nil {
		deps.Ingest = ingest
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(deps))
	httpMux.Handle("/ws/observe", hub)
	httpMux.Handle("/metrics", m.Handler())

	mw := auth.APIKeyMiddleware(
		cfg.Tracker.Auth.Mode,
		cfg.Tracker.Auth.EffectiveHeader(),
		cfg.Tracker.Auth.Key(),
	)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Tracker.HTTPPort),
		Handler:           mw(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Tracker.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if err := eng.Start(ctx); err != nil {
		httpSrv.Close()
		return err
	}
	slog.Info("engine started", "run_id", eng.RunID())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		slog.Error("HTTP server stopped", "err", runErr)
	}

	slog.Info("tracker shutting down")
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	eng.Stop()
	alertEngine.Wait()

	writerStop()
	<-writerDone
	if jrnl != nil {
		if err := jrnl.StopRun(shutdownCtx, eng.RunID(), time.Now()); err != nil {
			slog.Warn("journal: stop run", "err", err)
		}
	}
	slog.Info("tracker stopped", "status", eng.Status())
	return runErr
}

// buildSource returns the configured location source. The Ingest is non-nil
// only for the http source, where POST /api/v1/locations feeds it.
func buildSource(cfg config.LocationConfig) (location.Source, *location.Ingest) {
	switch cfg.Source {
	case "replay":
		return location.NewReplaySource(cfg.Replay.Path, cfg.Replay.Speed), nil
	case "mqtt":
		return location.NewMQTTSource(cfg.MQTT), nil
	default:
		in := location.NewIngest(64)
		return in, in
	}
}

package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/virtual-shiksha/shiksha/internal/cache"
	"github.com/virtual-shiksha/shiksha/internal/config"
	"github.com/virtual-shiksha/shiksha/internal/connectivity"
	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/internal/syncq"
)

// app bundles the components a command works with.
type app struct {
	cfg    *config.Config
	db     *db.DB
	router *cache.Router
	queue  *syncq.Queue
	probe  *connectivity.Probe
}

// openApp loads configuration, opens the store and wires the router and
// the sync queue the same way for every command.
func openApp(cmdName string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, trackCLIError(cmdName, fmt.Errorf("load config: %w", err))
	}
	paths := config.GetPaths(cfg)

	if err := log.Init(paths.Logs); err != nil {
		return nil, trackCLIError(cmdName, fmt.Errorf("init log: %w", err))
	}
	log.SetDebug(cfg.Debug)

	dbCfg := db.DefaultConfig(paths.Database)
	dbCfg.Debug = cfg.Debug
	database, err := db.New(dbCfg)
	if err != nil {
		return nil, trackCLIError(cmdName, fmt.Errorf("initialize database: %w", err))
	}

	router, err := cache.NewRouter(database, cache.Options{
		Origin:           cfg.Origin.URL,
		APIPrefix:        cfg.Origin.APIPrefix,
		Version:          cfg.Cache.Version,
		MaxBytes:         cfg.Cache.MaxBytes,
		TrimMinEntries:   cfg.Cache.TrimMinEntries,
		APIMaxAge:        cfg.Cache.APIMaxAge,
		FetchTimeout:     cfg.Cache.FetchTimeout,
		CountHeaderBytes: cfg.Cache.CountHeaderBytes,
		Telemetry:        telemetryClient,
	})
	if err != nil {
		_ = database.Close()
		return nil, trackCLIError(cmdName, fmt.Errorf("invalid configuration: %w", err))
	}

	probeURL := cfg.Sync.ProbeURL
	if probeURL == "" {
		probeURL = cfg.Origin.URL
	}
	probe := connectivity.NewProbe(probeURL, cfg.Sync.ProbeInterval, &http.Client{Timeout: cfg.Sync.ProbeInterval})

	queue := syncq.New(database, syncq.Options{
		MaxAttempts:     cfg.Sync.MaxAttempts,
		DeliveryTimeout: cfg.Sync.DeliveryTimeout,
		Connectivity:    probe,
		Telemetry:       telemetryClient,
	})
	apiBase := router.Origin().JoinPath(cfg.Origin.APIPrefix).String()
	queue.RegisterAll(syncq.NewHTTPHandler(apiBase, router.Client()), syncq.DefaultSyncTypes...)

	return &app{cfg: cfg, db: database, router: router, queue: queue, probe: probe}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
	_ = log.Close()
}

// recordDrain stores the time of the last drain that ran.
func (a *app) recordDrain(ctx context.Context, res syncq.Result) {
	if res.Skipped {
		return
	}
	if err := a.db.SetMeta(ctx, models.MetaLastDrain, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warnf("record last drain: %v", err)
	}
}

// lastDrain returns when the queue was last drained, or the zero time.
func (a *app) lastDrain(ctx context.Context) time.Time {
	raw, err := a.db.GetMeta(ctx, models.MetaLastDrain)
	if err != nil || raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

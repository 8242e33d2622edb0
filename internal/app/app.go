// Package app wires storage, the trip template, and every store into one
// object that the CLI, MCP server and HTTP API share.
package app

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/backup"
	"github.com/hpungsan/tripkit/internal/checklist"
	"github.com/hpungsan/tripkit/internal/config"
	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/expense"
	"github.com/hpungsan/tripkit/internal/itinerary"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
	"github.com/hpungsan/tripkit/internal/voucher"
	"github.com/hpungsan/tripkit/internal/weather"
)

// Options configures Open.
type Options struct {
	BaseDir string
	// Config defaults to config.DefaultConfig().
	Config *config.Config
	// Logger defaults to a discarding logger.
	Logger *logrus.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// WeatherProvider defaults to OpenWeather built from Config.
	WeatherProvider weather.Provider
}

// App is the application context. The stores are not safe for concurrent
// use; surfaces that serve requests concurrently run every store call
// inside Do. Weather is safe to call without Do.
type App struct {
	mu  sync.Mutex
	now func() time.Time

	BaseDir  string
	Config   *config.Config
	Log      *logrus.Logger
	Template *trip.Template

	DB *sql.DB
	KV *db.KV

	Itinerary *itinerary.Store
	Checklist *checklist.Store
	Expenses  *expense.Store
	Vouchers  *voucher.Store
	Weather   *weather.Service
}

// Open opens the database under opts.BaseDir, loads the template and every
// store. The caller must Close the returned App.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	tmpl, err := trip.Load(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}

	database, err := db.Init(opts.BaseDir)
	if err != nil {
		return nil, err
	}
	db.ConfigurePool(database, cfg)
	kv := db.NewKV(database)

	a := &App{
		now:      now,
		BaseDir:  opts.BaseDir,
		Config:   cfg,
		Log:      logger,
		Template: tmpl,
		DB:       database,
		KV:       kv,
		Itinerary: itinerary.New(tmpl, kv, itinerary.Options{
			OverlayMode: itinerary.OverlayMode(cfg.OverlayMode),
			Now:         now,
			Logger:      logger,
		}),
		Checklist: checklist.New(kv, checklist.Options{Now: now, Logger: logger}),
		Expenses:  expense.New(kv, expense.Options{Now: now, Logger: logger}),
		Vouchers:  voucher.New(kv, voucher.Options{Now: now, Logger: logger}),
	}

	if err := a.load(ctx); err != nil {
		database.Close()
		return nil, err
	}

	provider := opts.WeatherProvider
	if provider == nil {
		provider = weather.NewOpenWeatherProvider(weather.OpenWeatherConfig{
			APIKey:            cfg.WeatherAPIKey,
			BaseURL:           cfg.WeatherBaseURL,
			Units:             cfg.WeatherUnits,
			RequestsPerMinute: cfg.WeatherRequestsPerMinute,
		}, logger)
	}
	a.Weather = weather.NewService(provider, kv, weather.Options{
		TTL:      time.Duration(cfg.WeatherTTLMinutes) * time.Minute,
		Now:      now,
		Logger:   logger,
		Location: tmpl.Info.Location,
		Dates:    a.Itinerary.Dates(),
	})

	logging.Component(logger, "app").WithFields(logging.Fields{
		"trip":         tmpl.Info.Title,
		"start":        tmpl.Info.StartDate,
		"overlay_mode": cfg.OverlayMode,
	}).Debug("application opened")

	return a, nil
}

func (a *App) load(ctx context.Context) error {
	loaders := []func(context.Context) error{
		a.Itinerary.Load,
		a.Checklist.Load,
		a.Expenses.Load,
		a.Vouchers.Load,
	}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BackupKeys are the documents that export and import carry. The weather
// cache is left out.
var BackupKeys = []string{itinerary.Key, checklist.Key, expense.Key, voucher.Key}

// BackupDir is where exports are written and imports are read from.
func (a *App) BackupDir() string {
	return filepath.Join(a.BaseDir, "exports")
}

// Export writes the trip documents to path, or to a timestamped file in
// BackupDir when path is empty.
func (a *App) Export(ctx context.Context, path string) (*backup.ExportResult, error) {
	now := a.now()
	if path == "" {
		path = backup.DefaultPath(a.BackupDir(), now)
	}
	return backup.Export(ctx, a.KV, a.BackupDir(), path, BackupKeys, now)
}

// Import restores the trip documents from path and reloads every store. The
// itinerary goes through the itinerary store so it is checked, sorted and
// written by the gateway like any other schedule change.
func (a *App) Import(ctx context.Context, path string) (*backup.ImportResult, error) {
	restorers := map[string]backup.Restorer{itinerary.Key: a.Itinerary}
	res, err := backup.Import(ctx, a.KV, a.BackupDir(), path, BackupKeys, restorers)
	if err != nil {
		return nil, err
	}
	if err := a.load(ctx); err != nil {
		return nil, err
	}
	logging.Component(a.Log, "app").WithField("keys", res.Imported).Info("trip data imported")
	return res, nil
}

// Do runs fn while holding the application lock.
func (a *App) Do(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

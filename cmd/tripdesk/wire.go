// README: Component wiring shared by the serve and chat commands.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"tripdesk/internal/config"
	"tripdesk/internal/dialogue"
	"tripdesk/internal/infra"
	"tripdesk/internal/modules/trip"
	"tripdesk/internal/nlu"
	"tripdesk/internal/routes"
	"tripdesk/internal/session"
	"tripdesk/internal/slots"
)

// app holds the wired components and the resources to release on exit.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *pgxpool.Pool // nil without db.dsn
	sqlite  *sql.DB
	redis   *redis.Client
	nlu     *nlu.Client
	vocab   *slots.Vocabulary
	store   session.Store
	trips   *trip.Service
	routes  *routes.Dispatcher
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

func newProvider(ctx context.Context, cfg config.NLUConfig) (nlu.Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		p, err := nlu.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case config.ProviderOpenAI:
		return nlu.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), func() {}, nil
	case config.ProviderOllama:
		p, err := nlu.NewOllamaProvider(cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown nlu provider %q", cfg.Provider)
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()
	loc := cfg.Location()

	provider, closeProvider, err := newProvider(ctx, cfg.NLU)
	if err != nil {
		return nil, fmt.Errorf("nlu provider: %w", err)
	}
	a.closers = append(a.closers, closeProvider)
	a.nlu = nlu.NewClient(provider, nlu.Config{
		Timeout:         cfg.NLU.Timeout,
		ClassifyTimeout: cfg.NLU.ClassifyTimeout,
		Location:        loc,
	}, log.Named("nlu"))

	if cfg.DB.DSN != "" {
		a.db, err = infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.db.Close)
		a.trips = trip.NewService(trip.NewPGStore(a.db))
	} else {
		a.sqlite, err = infra.NewSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = a.sqlite.Close() })
		store := trip.NewSQLiteStore(a.sqlite)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		a.trips = trip.NewService(store)
	}

	if cfg.Redis.Addr != "" {
		a.redis, err = infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
	}

	switch cfg.Session.Backend {
	case config.BackendRedis:
		a.store = session.NewRedisStore(a.redis, cfg.Session.TTL)
	case config.BackendPostgres:
		a.store = session.NewPostgresStore(a.db)
	default:
		a.store = session.NewMemoryStore()
	}

	a.vocab = slots.NewVocabulary(slots.DefaultCities, cfg.Cities.Extra...)
	a.routes = newDispatcher(cfg.Routes, loc, log)

	ok = true
	return a, nil
}

func newDispatcher(cfg config.RoutesConfig, loc *time.Location, log *zap.Logger) *routes.Dispatcher {
	d := routes.NewDispatcher(cfg.Timeout, log.Named("routes"))
	d.Register(string(slots.TransportBus), routes.NewAtlasSearcher(cfg.AtlasBaseURL))
	d.Register(string(slots.TransportPlane), routes.NewAviasalesSearcher(cfg.AviasalesBaseURL))
	if cfg.MapsAPIKey == "" {
		log.Info("maps api key not set; transit search disabled")
		return d
	}
	for transport, mode := range map[slots.Transport]maps.TransitMode{
		slots.TransportBus:   maps.TransitModeBus,
		slots.TransportTrain: maps.TransitModeRail,
	} {
		s, err := routes.NewTransitSearcher(cfg.MapsAPIKey, mode, loc)
		if err != nil {
			log.Warn("transit search disabled", zap.String("transport", string(transport)), zap.Error(err))
			continue
		}
		d.Register(string(transport), s)
	}
	return d
}

// cityDirectory grounds cities outside the built-in vocabulary: Atlas first, then Places.
func (a *app) cityDirectory() routes.Directories {
	dirs := routes.Directories{routes.NewAtlasSearcher(a.cfg.Routes.AtlasBaseURL)}
	if a.cfg.Routes.MapsAPIKey != "" {
		places, err := routes.NewPlacesDirectory(a.cfg.Routes.MapsAPIKey, "en")
		if err != nil {
			a.log.Warn("places city lookup disabled", zap.Error(err))
			return dirs
		}
		dirs = append(dirs, places)
	}
	return dirs
}

// newEngine wires the dialogue core. notifier may be a nil interface.
func (a *app) newEngine(notifier dialogue.Notifier) *dialogue.Engine {
	loc := a.cfg.Location()
	dates := slots.NewDateNormalizer(loc, time.Now)
	validator := slots.NewValidator(a.vocab, a.cityDirectory(), a.cfg.Dialogue.CityCacheSize, a.log.Named("cities"))
	reconciler := slots.NewReconciler(slots.NewExtractor(a.vocab, dates), a.nlu, validator, dates, a.log.Named("reconcile"))

	deps := dialogue.Deps{
		Store:      a.store,
		Reconciler: reconciler,
		Vocabulary: a.vocab,
		Assistant:  a.nlu,
		Trips:      a.trips,
		Notifier:   notifier,
		Routes:     a.routes,
	}
	return dialogue.NewEngine(deps, dialogue.Config{
		ConfidenceThreshold: a.cfg.Dialogue.ConfidenceThreshold,
		GreetInterval:       a.cfg.Dialogue.GreetInterval,
		SessionTTL:          a.cfg.Session.TTL,
	}, a.log.Named("dialogue"))
}

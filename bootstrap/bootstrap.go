/*
bootstrap.go - Dependency wiring

PURPOSE:
  Turns a config.Config into a ready Manager plus the handles the entry
  points need for health checks and shutdown. cmd/server and cmd/gami
  share it so both run against the same storage and canisters.

WIRING:
  storage.driver   -> store/sqlite | store/bolt | store/redis | store/memory
  canisters.mode   -> canister/memory | canister/gateway
  identity.mode    -> identity.DevProvider | identity.RedirectProvider
  rewards.oracle   -> progression.SimulatedOracle | progression.CanisterOracle
  catalog_path     -> quests.LoadCatalogFile, else the seed catalog

SEE ALSO:
  - config/config.go: Config sections
*/
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/canister/gateway"
	cmem "github.com/warp/gami-engine/canister/memory"
	"github.com/warp/gami-engine/config"
	"github.com/warp/gami-engine/identity"
	"github.com/warp/gami-engine/progression"
	"github.com/warp/gami-engine/quests"
	"github.com/warp/gami-engine/store/bolt"
	"github.com/warp/gami-engine/store/memory"
	"github.com/warp/gami-engine/store/redis"
	"github.com/warp/gami-engine/store/sqlite"
)

// App is a wired Manager and what it was built from.
type App struct {
	Manager *progression.Manager
	Store   progression.Store
	Greeter canister.Greeter
	Config  config.Config
	Log     *logrus.Logger

	closers []func() error
}

// Options carries what config cannot: the browser opener for the
// redirect login flow.
type Options struct {
	OpenBrowser func(url string) error
}

// Build wires an App from cfg. The Manager is not yet initialized.
func Build(ctx context.Context, cfg config.Config, log *logrus.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Log: log}

	store, closer, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, closer)

	connector, greeter, err := openCanisters(cfg.Canisters, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Greeter = greeter

	catalog := quests.SeedCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = quests.LoadCatalogFile(cfg.CatalogPath); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	app.Manager = progression.NewManager(progression.Deps{
		Store:     store,
		Provider:  newProvider(cfg.Identity, log, opts.OpenBrowser),
		Connector: connector,
		Oracle:    newOracle(cfg.Rewards),
		Catalog:   catalog,
		Logger:    log.WithField("component", "progression"),
	})

	log.WithFields(logrus.Fields{
		"storage":   cfg.Storage.Driver,
		"canisters": cfg.Canisters.Mode,
		"identity":  cfg.Identity.Mode,
		"oracle":    cfg.Rewards.Oracle,
		"quests":    catalog.Len(),
	}).Info("wired")
	return app, nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ping checks storage liveness when the backend supports it.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.Store.(progression.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (progression.Store, func() error, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	case config.DriverBolt:
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverRedis:
		s, err := redis.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func openCanisters(cfg config.CanisterConfig, log logrus.FieldLogger) (canister.Connector, canister.Greeter, error) {
	if cfg.Mode != config.CanistersGateway {
		n := cmem.New()
		return n, n, nil
	}
	client, err := gateway.New(gateway.Options{
		BaseURL: cfg.GatewayURL,
		Canisters: gateway.CanisterIDs{
			Backend:     cfg.IDs.Backend,
			Profiles:    cfg.IDs.Profiles,
			Leaderboard: cfg.IDs.Leaderboard,
			Ledger:      cfg.IDs.Ledger,
			Rewards:     cfg.IDs.Rewards,
		},
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      cfg.Burst,
		Log:        log,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func newProvider(cfg config.IdentityConfig, log logrus.FieldLogger, open func(string) error) identity.Provider {
	if cfg.Mode != config.IdentityRedirect {
		return identity.NewDevProvider()
	}
	if open == nil {
		open = func(url string) error {
			log.WithField("url", url).Info("open this URL to log in")
			return nil
		}
	}
	p := identity.NewRedirectProvider(open, log.WithField("component", "identity"))
	p.IdentityProviderURL = cfg.ProviderURL
	p.ListenAddr = cfg.CallbackAddr
	p.Timeout = cfg.Timeout
	return p
}

func newOracle(cfg config.RewardsConfig) progression.RewardOracle {
	if cfg.Oracle == config.OracleCanister {
		return progression.CanisterOracle{}
	}
	o := progression.NewSimulatedOracle(time.Now().UnixNano())
	o.SuccessRate = cfg.SuccessRate
	o.MinDelay = cfg.MinDelay
	o.MaxDelay = cfg.MaxDelay
	return o
}

package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nasutils/ledd/internal/config"
	"github.com/nasutils/ledd/internal/db"
	"github.com/nasutils/ledd/internal/hw"
	"github.com/nasutils/ledd/internal/ledger"
	"github.com/nasutils/ledd/internal/luaext"
	"github.com/nasutils/ledd/internal/metrics"
	"github.com/nasutils/ledd/internal/reconcile"
	"github.com/nasutils/ledd/internal/server"
	"github.com/nasutils/ledd/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger

	// Hardware and state
	Controller hw.Controller
	Store      *state.Store
	Reconciler *reconcile.Reconciler

	// Frontends
	Server *server.Server
	Health *HealthService

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
// Any failure here (bus open, socket bind, database open) aborts
// startup; nothing is left half-running.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Open the LED controller and probe the available slots.
	ctrl, err := hw.OpenI2C(cfg.I2C.Device, cfg.I2C.Address)
	if err != nil {
		return nil, err
	}
	s.Controller = ctrl

	probed := hw.Probe(ctrl, state.MaxLEDs)
	log.Info().Int("leds", len(probed)).Msg("Probed leds")
	metrics.ProbedLEDs.Set(float64(len(probed)))

	// Pending and applied both start from the probed hardware status.
	s.Store = state.New(probed, nil)
	s.Reconciler = reconcile.New(ctrl, s.Store, probed, cfg.Reconciler.Interval.Duration(), nil)

	// Command audit ledger is optional.
	if cfg.Ledger.Enabled {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	}

	s.Server = server.New(cfg.Socket.Path, s.Store, s.Ledger)
	if err := s.Server.Listen(); err != nil {
		s.Close()
		return nil, err
	}

	s.Health = NewHealthService(cfg)

	return s, nil
}

// Start starts all background services. The onFatalError callback is
// called when a service fails in a way the daemon cannot survive.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Run the startup script before clients can connect, so boot-time
	// LED policy wins no races.
	if s.cfg.Script != "" {
		log.Info().Str("script", s.cfg.Script).Msg("Running startup script")
		if err := luaext.RunScript(s.cfg.Script, s.Store); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Reconciler.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	// Not part of the shutdown waitgroup: an idle client can hold its
	// session open indefinitely and must not block teardown.
	go func() {
		if err := s.Server.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	// Ledger cleanup (if auditing is enabled)
	if s.Ledger != nil {
		go s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), s.cfg.Ledger.Retention())
	}

	s.Health.Start(ctx)

	return nil
}

// Stop waits for the reconciler to observe cancellation and finish
// its current tick, then releases resources.
func (s *Services) Stop() error {
	s.wg.Wait()
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Controller != nil {
		s.Controller.Close()
	}
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/termgate/termgate/internal/config"
	"github.com/termgate/termgate/internal/database"
	"github.com/termgate/termgate/internal/families"
	"github.com/termgate/termgate/internal/handlers"
	"github.com/termgate/termgate/internal/logging"
	"github.com/termgate/termgate/internal/session"
	"github.com/termgate/termgate/internal/vault"
)

func main() {
	config.Load()
	logging.Init()
	log := logging.L()

	if err := database.Init(); err != nil {
		log.WithError(err).Fatal("database init")
	}
	defer database.Close()

	v, err := vault.Open(config.Cfg.MasterKeyPath)
	if err != nil {
		log.WithError(err).Fatal("vault init")
	}
	store, err := vault.OpenStore(config.Cfg.CredentialStorePath, v)
	if err != nil {
		log.WithError(err).Fatal("credential store init")
	}

	fams, err := families.Load(config.Cfg.FamiliesPath)
	if err != nil {
		log.WithError(err).Fatal("families table init")
	}

	manager := session.NewManager(session.Config{
		Families:       fams,
		ConnectTimeout: config.Cfg.ConnectTimeout,
		CommandTimeout: config.Cfg.CommandTimeout,
		IdleTimeout:    config.Cfg.IdleTimeout,
		SettleDuration: config.Cfg.SettleDuration,
		LoginTimeout:   config.Cfg.LoginTimeout,
		HistorySize:    config.Cfg.HistorySize,
	})
	manager.OnTransition(func(sessionID string, from, to session.State, reason string) {
		log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"from":       from.String(),
			"to":         to.String(),
			"reason":     reason,
		}).Debug("session transition")
	})

	handlers.Sessions = manager
	handlers.Creds = store

	// Idle sessions expire on access regardless; the cron sweep just frees
	// transport handles of sessions nobody touches again.
	var sweeper *cron.Cron
	if config.Cfg.SweepSchedule != "" {
		sweeper = cron.New()
		if _, err := sweeper.AddFunc(config.Cfg.SweepSchedule, func() {
			if n := manager.Sweep(); n > 0 {
				log.WithField("expired", n).Info("idle sweep")
			}
		}); err != nil {
			log.WithError(err).Fatal("invalid sweep schedule")
		}
		sweeper.Start()
	}

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: newRouter(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", config.Cfg.ListenAddr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-sigCtx.Done()
	log.Info("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}
	manager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
	log.Info("server stopped")
}

// newRouter builds the HTTP surface. The handler globals must be wired
// before the router serves traffic.
func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", handlers.OpenSession)
		r.Get("/sessions", handlers.ListSessions)
		r.Get("/sessions/{id}", handlers.GetSession)
		r.Delete("/sessions/{id}", handlers.CloseSession)
		r.Post("/sessions/{id}/commands", handlers.ExecuteCommand)
		r.Get("/sessions/{id}/history", handlers.GetSessionHistory)
		r.Post("/sessions/{id}/macros/{name}", handlers.RunMacro)

		r.Get("/profiles", handlers.ListProfiles)
		r.Post("/profiles", handlers.CreateProfile)
		r.Get("/profiles/{id}", handlers.GetProfile)
		r.Put("/profiles/{id}", handlers.UpdateProfile)
		r.Delete("/profiles/{id}", handlers.DeleteProfile)
		r.Put("/profiles/{id}/credential", handlers.PutCredential)
		r.Delete("/profiles/{id}/credential", handlers.DeleteCredential)

		r.Get("/catalog", handlers.GetCatalog)
		r.Post("/catalog", handlers.CreateCatalogEntry)
		r.Get("/macros", handlers.ListMacros)
		r.Post("/macros", handlers.CreateMacro)

		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
	})

	return r
}

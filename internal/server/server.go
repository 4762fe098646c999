package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/krishanraja/try-ritual-sub002/internal/config"
	"github.com/krishanraja/try-ritual-sub002/internal/handlers"
	"github.com/krishanraja/try-ritual-sub002/internal/middleware"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
	"github.com/krishanraja/try-ritual-sub002/internal/synth"
)

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(database *sql.DB, cfg config.Config, synthesizer synth.Synthesizer) *Server {
	partnerRepo := repository.NewPartnerRepository(database)
	coupleRepo := repository.NewCoupleRepository(database)
	cycleRepo := repository.NewCycleRepository(database)
	subscriptionRepo := repository.NewPushSubscriptionRepository(database)

	notifier := services.NewWebhookNotifier(subscriptionRepo)
	authService := services.NewAuthService(partnerRepo, cfg.JWTSecret)
	cycleService := services.NewCycleService(cycleRepo, coupleRepo, notifier, cfg.NudgeCooldown, cfg.NudgeMaxPerCycle)
	coordinator := services.NewSynthesisCoordinator(cycleRepo, coupleRepo, synthesizer, notifier, cfg.SynthesisTimeout, cfg.LockStaleAfter)

	authHandler := handlers.NewAuthHandler(authService)
	coupleHandler := handlers.NewCoupleHandler(coupleRepo, partnerRepo)
	cycleHandler := handlers.NewCycleHandler(cycleService, coordinator, cycleRepo, coupleRepo)
	pushHandler := handlers.NewPushHandler(subscriptionRepo)
	calendarHandler := handlers.NewCalendarHandler(cycleRepo, coupleRepo, cfg.JWTSecret, cfg.BaseURL)

	router := chi.NewRouter()

	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Post("/api/auth/register", authHandler.Register)
	router.Post("/api/auth/login", authHandler.Login)

	router.Get("/calendar", calendarHandler.Feed)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(authService))

		r.Post("/api/couples", coupleHandler.Create)
		r.Get("/api/couples/mine", coupleHandler.Mine)

		r.Post("/api/cycles/current", cycleHandler.Current)
		r.Get("/api/cycles/{id}", cycleHandler.Get)
		r.Post("/api/cycles/{id}/input", cycleHandler.SubmitInput)
		r.Post("/api/cycles/{id}/trigger", cycleHandler.Trigger)
		r.Post("/api/cycles/{id}/nudge", cycleHandler.Nudge)

		r.Post("/api/push/subscriptions", pushHandler.Subscribe)
		r.Delete("/api/push/subscriptions/{id}", pushHandler.Unsubscribe)

		r.Get("/api/calendar/link", calendarHandler.Link)
	})

	return &Server{router: router, config: cfg}
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) Start() error {
	address := ":" + server.config.Port
	slog.Info("starting server", "address", address)
	return http.ListenAndServe(address, server.router)
}

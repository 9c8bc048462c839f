package routes

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Jsunwilke/employeeapp-sub001/config"
	"github.com/Jsunwilke/employeeapp-sub001/internal/autosave"
	adminHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/admin"
	authHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/auth"
	editingHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/editing"
	exportHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/export"
	rosterHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/roster"
	timeclockHandlers "github.com/Jsunwilke/employeeapp-sub001/internal/handlers/timeclock"
	"github.com/Jsunwilke/employeeapp-sub001/internal/locks"
	"github.com/Jsunwilke/employeeapp-sub001/internal/middleware"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/repositories"
	authService "github.com/Jsunwilke/employeeapp-sub001/internal/services/auth"
	"github.com/Jsunwilke/employeeapp-sub001/internal/store"
	"github.com/Jsunwilke/employeeapp-sub001/internal/timeclock"
)

// Setup wires the consistency layer and returns the configured router.
func Setup(cfg *config.Config, database *sql.DB, redisClient *redis.Client) *chi.Mux {
	jwtAuth := jwtauth.New("HS256", []byte(cfg.JwtSecret), nil)
	jwtService := authService.NewJWTService(cfg.JwtSecret, redisClient)

	userRepo := repositories.NewUserRepository(database)
	rosterRepo := repositories.NewRosterRepository(database)
	entryRepo := repositories.NewTimeEntryRepository(database)

	lockStore := store.NewRedisStore(redisClient)
	lockManager := locks.NewManager(lockStore)

	saver := autosave.SaverFunc(func(ctx context.Context, key autosave.FieldKey, value string) error {
		return rosterRepo.UpdateField(ctx, key.FieldOwnerID, key.Field, value)
	})
	coordinator := autosave.NewCoordinator(lockManager, saver, cfg.AutosaveDelay, cfg.LockLeaseDuration)
	go drainLostEdits(coordinator)

	rules := timeclock.Rules{
		MaxDuration:           cfg.MaxEntryDuration,
		MaxNotesLength:        cfg.MaxNotesLength,
		EditWindow:            cfg.EditWindow,
		ActiveStartEditWindow: cfg.ActiveStartEditWindow,
	}
	clockService := timeclock.NewService(entryRepo, rules)

	authHandler := authHandlers.NewAuthHandler(userRepo, jwtService)
	editingHandler := editingHandlers.NewHandlers(lockManager, coordinator, userRepo, rosterRepo, cfg.LockLeaseDuration)
	clockHandler := timeclockHandlers.NewHandlers(clockService)
	rosterHandler := rosterHandlers.NewHandlers(rosterRepo)
	exportHandler := exportHandlers.NewHandlers(clockService)
	adminHandler := adminHandlers.NewHandlers(clockService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(jwtauth.Verifier(jwtAuth))
	router.Use(middleware.AddUserIDToContext())

	// Public routes
	router.Post("/api/auth/register", authHandler.RegisterHandler)
	router.Post("/api/auth/login", authHandler.LoginHandler)
	router.Post("/api/auth/refresh", authHandler.RefreshTokenHandler)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Authenticator(jwtAuth))

		r.Post("/api/logout", authHandler.LogoutHandler)

		// Field locks
		r.Post("/api/locks/acquire", editingHandler.AcquireLockHandler)
		r.Post("/api/locks/renew", editingHandler.RenewLockHandler)
		r.Post("/api/locks/release", editingHandler.ReleaseLockHandler)
		r.Post("/api/locks/sweep", editingHandler.SweepLocksHandler)
		r.Get("/api/locks", editingHandler.ActiveLocksHandler)
		r.Get("/api/locks/watch", editingHandler.WatchLocksHandler)

		// Editing sessions
		r.Post("/api/edit/begin", editingHandler.BeginEditHandler)
		r.Post("/api/edit/value", editingHandler.EditValueHandler)
		r.Post("/api/edit/end", editingHandler.EndEditHandler)

		// Time clock
		r.Post("/api/clock/in", clockHandler.ClockInHandler)
		r.Post("/api/clock/out", clockHandler.ClockOutHandler)
		r.Get("/api/clock/active", clockHandler.ActiveEntryHandler)
		r.Delete("/api/clock/active", clockHandler.AbortActiveHandler)
		r.Get("/api/entries", clockHandler.ListEntriesHandler)
		r.Post("/api/entries", clockHandler.CreateEntryHandler)
		r.Patch("/api/entries/{entryID}", clockHandler.UpdateEntryHandler)
		r.Patch("/api/entries/{entryID}/start", clockHandler.EditActiveStartHandler)
		r.Delete("/api/entries/{entryID}", clockHandler.DeleteEntryHandler)

		// Roster
		r.Get("/api/roster", rosterHandler.ListHandler)
		r.Post("/api/roster/import", rosterHandler.ImportHandler)

		// Export
		r.Get("/api/timesheet/export", exportHandler.TimesheetHandler)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/api/admin/entries/active", adminHandler.ActiveEntriesHandler)
			r.Post("/api/admin/entries/{entryID}/force-complete", adminHandler.ForceCompleteHandler)
		})
	})

	return router
}

// drainLostEdits surfaces suppressed autosave writes. Clients learn about
// the loss from the conflict responses on their next edit call; this log is
// the server-side record.
func drainLostEdits(coordinator *autosave.Coordinator) {
	for edit := range coordinator.LostEdits() {
		log.Printf("autosave: suppressed write for %s/%s field %s (holder %s): %v",
			edit.Key.ContainerID, edit.Key.FieldOwnerID, edit.Key.Field, edit.HolderID, edit.Reason)
	}
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/docstore"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/handler"
	"github.com/dukerupert/hearth/internal/household"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/recipe"
	"github.com/dukerupert/hearth/internal/reminder"
	"github.com/dukerupert/hearth/internal/store"
	ws "github.com/dukerupert/hearth/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

const (
	authRateInterval = 6 * time.Second // ten attempts a minute
	authRateBurst    = 10
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authService  *auth.Service
	households   *household.Service
	authH        *handler.AuthHandler
	householdH   *handler.HouseholdHandler
	shoppingH    *handler.ShoppingHandler
	reminderH    *handler.ReminderHandler
	appointmentH *handler.AppointmentHandler
	contactH     *handler.ContactHandler
	mealH        *handler.MealHandler
	dashboardH   *handler.DashboardHandler
	pushH        *handler.PushHandler
	backupH      *handler.BackupHandler
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	clientIP     func(*http.Request) string
	adminEmails  []string
	reminderJob  *reminder.Job
	backupMgr    *backup.Manager
	logger       *slog.Logger
}

// New wires every store, service and handler over the local database and
// the household document store.
func New(cfg *config.Config, db *sql.DB, docs docstore.Store, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	feed := changefeed.NewHub(logger.With("component", "changefeed"))

	shoppingStore := store.NewShoppingStore(db, feed)
	reminderStore := store.NewReminderStore(db, feed)
	appointmentStore := store.NewAppointmentStore(db, feed)
	contactStore := store.NewContactStore(db, feed)
	accountStore := store.NewAccountStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	authService := auth.NewService(accountStore, cfg.JWTSecret, bcrypt.DefaultCost)
	households := household.NewService(docs, logger.With("component", "household"))
	households.OnMove(pushStore.MoveUser)

	pushService := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.FromEmail)
	notifier := push.NewNotifier(pushService, pushStore, logger.With("component", "push"))
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	recipes := recipe.NewClient(cfg.SpoonacularKey, logger.With("component", "recipe"))

	backupMgr := backup.NewManager(backup.Config{
		S3:         cfg.S3,
		DBPath:     cfg.DBPath,
		Passphrase: cfg.BackupPassphrase,
	}, db, backupStore, logger.With("component", "backup"))

	return &Server{
		db:           db,
		hub:          hub,
		authService:  authService,
		households:   households,
		authH:        handler.NewAuthHandler(authService, households, logger.With("component", "auth")),
		householdH:   handler.NewHouseholdHandler(households, emailClient, hub, logger.With("component", "household_handler")),
		shoppingH:    handler.NewShoppingHandler(shoppingStore, hub, logger.With("component", "shopping")),
		reminderH:    handler.NewReminderHandler(reminderStore, hub, cfg.Location, logger.With("component", "reminders")),
		appointmentH: handler.NewAppointmentHandler(appointmentStore, hub, cfg.Location, logger.With("component", "appointments")),
		contactH:     handler.NewContactHandler(contactStore, hub, logger.With("component", "contacts")),
		mealH:        handler.NewMealHandler(recipes, shoppingStore, logger.With("component", "meals")),
		dashboardH:   handler.NewDashboardHandler(shoppingStore, reminderStore, appointmentStore, contactStore, households, cfg.Location, logger.With("component", "dashboard")),
		pushH:        handler.NewPushHandler(pushStore, pushService, notifier, logger.With("component", "push_handler")),
		backupH:      handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(authRateInterval, authRateBurst),
		clientIP:     middleware.ClientIP(cfg.TrustProxy),
		adminEmails:  cfg.AdminEmails,
		reminderJob:  reminder.NewJob(reminderStore, pushStore, notifier, cfg.Location, logger.With("component", "reminders_job")),
		backupMgr:    backupMgr,
		logger:       logger,
	}
}

// ReminderJob returns the daily due-reminder notifier.
func (s *Server) ReminderJob() *reminder.Job {
	return s.reminderJob
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live stream hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("POST /api/auth/register", s.rateLimited(s.authH.Register))
	mux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))

	s.registerProtectedRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(metrics.Instrument(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, s.clientIP)(h)
}

// admin runs h for a signed-in operator listed in HEARTH_ADMIN_EMAILS.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.authService)(middleware.RequireAdmin(s.adminEmails)(h))
}

// protected runs h for a signed-in caller whose household is resolved.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	requireHousehold := middleware.RequireHousehold(s.households, s.logger.With("component", "auth"))
	return middleware.RequireAuth(s.authService)(requireHousehold(h))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.protected(h))
	}

	handle("GET /api/auth/me", s.authH.Me)

	// Household
	handle("GET /api/household", s.householdH.Get)
	handle("PUT /api/household", s.householdH.Rename)
	handle("POST /api/household/members", s.householdH.AddMember)
	handle("POST /api/household/join", s.householdH.Join)
	handle("POST /api/household/leave", s.householdH.Leave)

	// Shopping
	handle("GET /api/shopping", s.shoppingH.List)
	handle("POST /api/shopping", s.shoppingH.Create)
	handle("PUT /api/shopping", s.shoppingH.ReplaceAll)
	handle("DELETE /api/shopping", s.shoppingH.DeleteAll)
	handle("POST /api/shopping/batch", s.shoppingH.InsertAll)
	handle("GET /api/shopping/count", s.shoppingH.Count)
	handle("POST /api/shopping/clear-checked", s.shoppingH.ClearChecked)
	handle("PUT /api/shopping/{id}", s.shoppingH.Update)
	handle("DELETE /api/shopping/{id}", s.shoppingH.Delete)
	handle("POST /api/shopping/{id}/check", s.shoppingH.ToggleChecked)

	// Cleaning reminders
	handle("GET /api/reminders", s.reminderH.List)
	handle("POST /api/reminders", s.reminderH.Create)
	handle("DELETE /api/reminders", s.reminderH.DeleteAll)
	handle("POST /api/reminders/batch", s.reminderH.InsertAll)
	handle("GET /api/reminders/due", s.reminderH.Due)
	handle("GET /api/reminders/count", s.reminderH.Count)
	handle("PUT /api/reminders/{id}", s.reminderH.Update)
	handle("DELETE /api/reminders/{id}", s.reminderH.Delete)
	handle("POST /api/reminders/{id}/complete", s.reminderH.Complete)

	// Doctor appointments
	handle("GET /api/appointments", s.appointmentH.List)
	handle("POST /api/appointments", s.appointmentH.Create)
	handle("DELETE /api/appointments", s.appointmentH.DeleteAll)
	handle("POST /api/appointments/batch", s.appointmentH.InsertAll)
	handle("GET /api/appointments/upcoming", s.appointmentH.Upcoming)
	handle("GET /api/appointments/count", s.appointmentH.Count)
	handle("PUT /api/appointments/{id}", s.appointmentH.Update)
	handle("DELETE /api/appointments/{id}", s.appointmentH.Delete)

	// Contacts
	handle("GET /api/contacts", s.contactH.List)
	handle("POST /api/contacts", s.contactH.Create)
	handle("DELETE /api/contacts", s.contactH.DeleteAll)
	handle("POST /api/contacts/batch", s.contactH.InsertAll)
	handle("PUT /api/contacts/{id}", s.contactH.Update)
	handle("DELETE /api/contacts/{id}", s.contactH.Delete)

	handle("GET /api/meals/suggestions", s.mealH.Suggestions)
	handle("GET /api/dashboard", s.dashboardH.Get)

	// Push notifications
	handle("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	handle("POST /api/push/subscribe", s.pushH.Subscribe)
	handle("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	handle("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	handle("POST /api/push/test", s.pushH.Test)

	// Backups
	mux.Handle("GET /api/backups", s.admin(s.backupH.List))
	mux.Handle("POST /api/backups", s.admin(s.backupH.Run))

	// Live streams
	handle("GET /ws/household/members", s.householdH.StreamMembers)
	handle("GET /ws/shopping", s.shoppingH.Stream)
	handle("GET /ws/shopping/count", s.shoppingH.StreamCount)
	handle("GET /ws/reminders", s.reminderH.Stream)
	handle("GET /ws/appointments", s.appointmentH.Stream)
	handle("GET /ws/contacts", s.contactH.Stream)
}

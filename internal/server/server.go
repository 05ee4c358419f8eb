package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pokeayman/pokeayman/internal/fallback"
	"github.com/pokeayman/pokeayman/internal/handler"
	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/middleware"
	"github.com/pokeayman/pokeayman/internal/notify"
	"github.com/pokeayman/pokeayman/internal/push"
	"github.com/pokeayman/pokeayman/internal/ranking"
	"github.com/pokeayman/pokeayman/internal/store"
	ws "github.com/pokeayman/pokeayman/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	ledgerSvc     *ledger.Service
	studentH      *handler.StudentHandler
	schoolH       *handler.SchoolHandler
	catalogH      *handler.CatalogHandler
	ledgerH       *handler.LedgerHandler
	homeworkH     *handler.HomeworkHandler
	rankingH      *handler.RankingHandler
	notificationH *handler.NotificationHandler
	settingsH     *handler.SettingsHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, fallbackStore *fallback.Store, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	studentStore := store.NewStudentStore(db)
	schoolStore := store.NewSchoolStore(db)
	catalogStore := store.NewCatalogStore(db)
	collectionStore := store.NewCollectionStore(db)
	homeworkStore := store.NewHomeworkStore(db)
	notificationStore := store.NewNotificationStore(db)
	pushStore := store.NewPushStore(db)
	settingsStore := store.NewSettingsStore(db)

	var pushSvc *push.Service
	if pushCfg.Enabled() {
		pushSvc = push.NewService(pushCfg)
	}

	notifier := notify.NewService(notificationStore, pushStore, pushSvc, logger.With("component", "notify"))
	ledgerSvc := ledger.NewService(studentStore, collectionStore, catalogStore, fallbackStore, notifier, logger.With("component", "ledger"))
	aggregator := ranking.NewAggregator(studentStore, collectionStore, settingsStore)

	return &Server{
		db:            db,
		hub:           hub,
		ledgerSvc:     ledgerSvc,
		studentH:      handler.NewStudentHandler(studentStore, schoolStore, hub, logger.With("component", "student")),
		schoolH:       handler.NewSchoolHandler(schoolStore, logger.With("component", "school")),
		catalogH:      handler.NewCatalogHandler(catalogStore, logger.With("component", "catalog")),
		ledgerH:       handler.NewLedgerHandler(ledgerSvc, settingsStore, hub, logger.With("component", "ledger_handler")),
		homeworkH:     handler.NewHomeworkHandler(homeworkStore, studentStore, ledgerSvc, hub, logger.With("component", "homework")),
		rankingH:      handler.NewRankingHandler(aggregator, logger.With("component", "ranking")),
		notificationH: handler.NewNotificationHandler(notificationStore, pushStore, pushSvc, logger.With("component", "notification")),
		settingsH:     handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		rateLimiter:   middleware.NewRateLimiter(60, time.Minute),
		logger:        logger,
	}
}

// Ledger returns the reward service, for the reconcile loop started from main.
func (s *Server) Ledger() *ledger.Service {
	return s.ledgerSvc
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub))

	// Schools and classes
	mux.HandleFunc("POST /api/schools", s.schoolH.CreateSchool)
	mux.HandleFunc("GET /api/schools", s.schoolH.ListSchools)
	mux.HandleFunc("POST /api/schools/{id}/classes", s.schoolH.CreateClass)
	mux.HandleFunc("GET /api/schools/{id}/classes", s.schoolH.ListClasses)

	// Students
	mux.HandleFunc("POST /api/students", s.studentH.Create)
	mux.HandleFunc("GET /api/students", s.studentH.List)
	mux.HandleFunc("GET /api/students/{id}", s.studentH.Get)

	// Catalog
	mux.HandleFunc("GET /api/pokemon", s.catalogH.List)
	mux.HandleFunc("GET /api/pokemon/{id}", s.catalogH.Get)
	mux.HandleFunc("POST /api/pokemon/import", s.catalogH.Import)

	// Reward operations — rate limited per client IP
	mux.HandleFunc("POST /api/students/{id}/coins/award", s.rateLimited(s.ledgerH.AwardCoins))
	mux.HandleFunc("POST /api/students/{id}/coins/remove", s.rateLimited(s.ledgerH.RemoveCoins))
	mux.HandleFunc("GET /api/students/{id}/balance", s.ledgerH.GetBalance)
	mux.HandleFunc("POST /api/students/{id}/pokemon", s.rateLimited(s.ledgerH.AwardPokemon))
	mux.HandleFunc("GET /api/students/{id}/collection", s.ledgerH.ListCollection)
	mux.HandleFunc("DELETE /api/collection/{entry_id}", s.rateLimited(s.ledgerH.RemovePokemon))
	mux.HandleFunc("POST /api/students/{id}/shop/purchase", s.rateLimited(s.ledgerH.PurchasePokemon))
	mux.HandleFunc("POST /api/students/{id}/mystery-ball", s.rateLimited(s.ledgerH.OpenMysteryBall))

	// Rankings
	mux.HandleFunc("GET /api/rankings", s.rankingH.Get)

	// Homework
	mux.HandleFunc("POST /api/homeworks", s.homeworkH.Create)
	mux.HandleFunc("GET /api/classes/{id}/homeworks", s.homeworkH.List)
	mux.HandleFunc("POST /api/homeworks/{id}/submissions", s.homeworkH.Submit)
	mux.HandleFunc("GET /api/homeworks/{id}/submissions", s.homeworkH.ListSubmissions)
	mux.HandleFunc("POST /api/submissions/{id}/review", s.homeworkH.Review)

	// Notifications and push
	mux.HandleFunc("GET /api/students/{id}/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/push/vapid-key", s.notificationH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.notificationH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.notificationH.Unsubscribe)

	// Settings
	mux.HandleFunc("GET /api/settings/economy", s.settingsH.GetEconomy)
	mux.HandleFunc("PUT /api/settings/economy", s.settingsH.UpdateEconomy)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.Limit(s.rateLimiter, keyFunc)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/config"
	"github.com/rowanhale/pulsefit/internal/email"
	"github.com/rowanhale/pulsefit/internal/face"
	"github.com/rowanhale/pulsefit/internal/handler"
	"github.com/rowanhale/pulsefit/internal/middleware"
	"github.com/rowanhale/pulsefit/internal/model"
	"github.com/rowanhale/pulsefit/internal/oauth"
	"github.com/rowanhale/pulsefit/internal/push"
	stripeclient "github.com/rowanhale/pulsefit/internal/shop/stripe"
	"github.com/rowanhale/pulsefit/internal/store"
	ws "github.com/rowanhale/pulsefit/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	resolver      *auth.Service
	authH         *handler.AuthHandler
	faceH         *handler.FaceHandler
	shopH         *handler.ShopHandler
	pushH         *handler.PushHandler
	adminH        *handler.AdminHandler
	sessionStore  *store.SessionStore
	oauthStore    *oauth.Store
	rateLimiter   *middleware.RateLimiter
	pushService   *push.Service
	secureCookies bool
	baseURL       string
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	profileStore := store.NewFaceProfileStore(db)
	planStore := store.NewPlanStore(db)
	orderStore := store.NewOrderStore(db)
	pushStore := store.NewPushStore(db)

	codec := auth.NewCodec(cfg.TokenSecret, cfg.TokenTTL)
	resolver := auth.NewService(codec, oauth.NewSessionReader(db), sessionStore, userStore, logger.With("component", "auth_resolver"))

	engine := face.NewEngine(profileStore, cfg.FaceMatchThreshold, logger.With("component", "face_engine"))
	scans := face.NewScanManager(logger.With("component", "face_scan"))

	stripeClient := stripeclient.NewClient(stripeclient.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.BaseURL + "/dashboard/orders?checkout=success",
		CancelURL:     cfg.BaseURL + "/shop?checkout=canceled",
	})
	emailClient := email.NewClient(cfg.PostmarkServerToken, cfg.FromEmail, cfg.BaseURL)
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)

	secure := cfg.Production()
	oauthStore := oauth.NewStore(db)

	return &Server{
		db:            db,
		hub:           hub,
		resolver:      resolver,
		authH:         handler.NewAuthHandler(userStore, sessionStore, oauthStore, codec, resolver, emailClient, secure, logger.With("component", "auth")),
		faceH:         handler.NewFaceHandler(engine, scans, profileStore, userStore, sessionStore, hub, secure, logger.With("component", "face")),
		shopH:         handler.NewShopHandler(planStore, orderStore, userStore, pushStore, stripeClient, emailClient, pushSvc, hub, logger.With("component", "shop")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push")),
		adminH:        handler.NewAdminHandler(userStore, sessionStore, orderStore, planStore, profileStore, logger.With("component", "admin")),
		sessionStore:  sessionStore,
		oauthStore:    oauthStore,
		rateLimiter:   middleware.NewRateLimiter(),
		pushService:   pushSvc,
		secureCookies: secure,
		baseURL:       cfg.BaseURL,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// OAuthStore returns the provider session store for cleanup tasks.
func (s *Server) OAuthStore() *oauth.Store {
	return s.oauthStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/face-login", s.rateLimitedHandler(s.faceH.Login))
	outerMux.HandleFunc("GET /api/auth/resolve", s.authH.Resolve)
	outerMux.HandleFunc("GET /api/shop/plans", s.shopH.ListPlans)
	outerMux.HandleFunc("POST /api/shop/webhook", s.shopH.Webhook)
	outerMux.HandleFunc("GET /api/push/public-key", s.pushH.PublicKey)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth, then the role prefix
	// policy for the whole subtree.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.resolver, s.secureCookies)
	outerMux.Handle("/", authMiddleware(middleware.RequirePathAccess(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session routes
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("PUT /api/auth/profile", s.authH.UpdateProfile)
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	// Face profile API routes
	mux.HandleFunc("GET /api/face/profiles", s.faceH.List)
	mux.HandleFunc("POST /api/face/profiles", s.faceH.Enroll)
	mux.HandleFunc("POST /api/face/profiles/from-scan", s.faceH.EnrollFromScan)
	mux.HandleFunc("DELETE /api/face/profiles/{id}", s.faceH.Deactivate)

	// Face scan API routes
	mux.HandleFunc("POST /api/face/scan", s.faceH.StartScan)
	mux.HandleFunc("GET /api/face/scan/{id}", s.faceH.ScanStatus)
	mux.HandleFunc("POST /api/face/scan/{id}/frames", s.faceH.PushFrames)
	mux.HandleFunc("DELETE /api/face/scan/{id}", s.faceH.CancelScan)

	// Shop API routes
	mux.HandleFunc("POST /api/shop/checkout", s.shopH.Checkout)
	mux.HandleFunc("GET /api/shop/orders", s.shopH.Orders)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)

	// Staff routes. The path policy already gates these prefixes; the
	// explicit role middleware keeps the floor even if a route is ever
	// mounted under a different path.
	requireManager := middleware.RequireRole(model.RoleManager)
	requireAdmin := middleware.RequireRole(model.RoleAdmin)

	mux.Handle("GET /api/manager/overview", requireManager(http.HandlerFunc(s.adminH.Overview)))
	mux.Handle("GET /api/admin/users", requireAdmin(http.HandlerFunc(s.adminH.ListUsers)))
	mux.Handle("GET /api/admin/users/{id}", requireAdmin(http.HandlerFunc(s.adminH.GetUser)))
	mux.Handle("PUT /api/admin/users/{id}/role", requireAdmin(http.HandlerFunc(s.adminH.UpdateUserRole)))
	mux.Handle("DELETE /api/admin/users/{id}", requireAdmin(http.HandlerFunc(s.adminH.DeleteUser)))
	mux.Handle("POST /api/admin/plans", requireAdmin(http.HandlerFunc(s.adminH.CreatePlan)))
	mux.Handle("PUT /api/admin/plans/{id}/active", requireAdmin(http.HandlerFunc(s.adminH.SetPlanActive)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, []string{s.originPattern()}))
}

func (s *Server) originPattern() string {
	u := s.baseURL
	for _, prefix := range []string{"https://", "http://"} {
		if len(u) > len(prefix) && u[:len(prefix)] == prefix {
			return u[len(prefix):]
		}
	}
	return u
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chime-server/config"
	"chime-server/handlers"
	"chime-server/metrics"
	"chime-server/middleware"
	"chime-server/notify"
	"chime-server/store"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./chime.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	metrics.Init()

	s, err := store.New(cfg.DBPath, cfg.Location())
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer s.Close()

	// Notification core. The hub is built first because the delivery engine
	// sends through it; the registry is wired back in afterwards.
	gate := notify.NewGate()
	hub := handlers.NewHub(gate)

	senders := notify.Fanout{hub}
	if cfg.Notifications.VAPIDPublicKey != "" && cfg.Notifications.VAPIDPrivateKey != "" {
		senders = append(senders, notify.NewWebPushSender(
			s,
			cfg.Notifications.Subscriber,
			cfg.Notifications.VAPIDPublicKey,
			cfg.Notifications.VAPIDPrivateKey,
		))
	} else {
		log.Println("Warning: VAPID keys not set. Background push delivery disabled.")
	}

	engine := notify.NewEngine(senders, hub, gate)
	registry := notify.NewRegistry(engine)
	hub.SetScheduler(registry)
	go hub.Run()

	rechecker := notify.NewRechecker(s, registry, cfg.Notifications.RecheckSchedule, cfg.Notifications.Lookahead.Std())
	if err := rechecker.Start(); err != nil {
		log.Fatal("Failed to start rechecker:", err)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(s)
	calendarHandler := handlers.NewCalendarHandler(s)
	eventHandler := handlers.NewEventHandler(s, hub)
	notificationHandler := handlers.NewNotificationHandler(s, registry, gate, cfg.Notifications.VAPIDPublicKey)
	exportHandler := handlers.NewExportHandler(s, cfg.BackupDir)
	staticHandler := handlers.NewStaticHandler(cfg.StaticDir)

	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/ws", hub.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", staticHandler.Index)
	mux.HandleFunc("GET /static/{filename...}", staticHandler.Asset)

	// Protected routes (auth required)
	mux.HandleFunc("GET /api/auth/me", withAuth(authHandler.Me))

	// Calendars
	mux.HandleFunc("GET /api/calendars", withAuth(calendarHandler.List))
	mux.HandleFunc("POST /api/calendars", withAuth(calendarHandler.Create))
	mux.HandleFunc("PUT /api/calendars/{id}", withAuth(calendarHandler.Update))
	mux.HandleFunc("DELETE /api/calendars/{id}", withAuth(calendarHandler.Delete))

	// Events
	mux.HandleFunc("GET /api/events/today", withAuth(eventHandler.Today))
	mux.HandleFunc("POST /api/events", withAuth(eventHandler.Create))
	mux.HandleFunc("GET /api/calendars/{calendarId}/events/{id}", withAuth(eventHandler.Get))
	mux.HandleFunc("PUT /api/calendars/{calendarId}/events/{id}", withAuth(eventHandler.Update))
	mux.HandleFunc("DELETE /api/calendars/{calendarId}/events/{id}", withAuth(eventHandler.Delete))

	// Notifications
	mux.HandleFunc("GET /api/push/vapid-key", withAuth(notificationHandler.VAPIDKey))
	mux.HandleFunc("POST /api/push/subscriptions", withAuth(notificationHandler.Subscribe))
	mux.HandleFunc("DELETE /api/push/subscriptions", withAuth(notificationHandler.Unsubscribe))
	mux.HandleFunc("POST /api/notifications/permission", withAuth(notificationHandler.ReportPermission))
	mux.HandleFunc("GET /api/notifications/pending", withAuth(notificationHandler.Pending))

	// Export and backup
	mux.HandleFunc("GET /api/export.ics", withAuth(exportHandler.ExportICS))
	mux.HandleFunc("POST /api/backup", withAuth(exportHandler.Backup))

	handler := corsMiddleware(middleware.Metrics(mux))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		log.Printf("Chime server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	rechecker.Stop()
	registry.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// withAuth wraps a handler with authentication
func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = middleware.SetUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

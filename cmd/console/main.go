package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/httpapi"
	"payloom.io/internal/obs"
	"payloom.io/internal/session"
	"payloom.io/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	backendURL := os.Getenv("PAYLOOM_BACKEND_URL")
	if backendURL == "" {
		log.Fatal("PAYLOOM_BACKEND_URL is required")
	}
	api, err := backend.New(backendURL)
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}

	// Sessions live in Postgres when a DSN is configured; the in-memory
	// store is for local development only and forgets everything on restart.
	var (
		sessions session.Store = session.NewMemoryStore()
		probe    httpapi.ReadyProbe
	)
	if dsn := os.Getenv("PAYLOOM_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		sessions = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		audit.SetSink(store)
	}

	c := cache.New()
	mgr := session.NewManager(sessions, api, c)

	app := httpapi.New(httpapi.Config{
		Version:       version,
		Backend:       api,
		Sessions:      mgr,
		Cache:         c,
		ReadyProbe:    probe,
		SecureCookies: os.Getenv("PAYLOOM_SECURE_COOKIES") != "",
		CookieDomain:  os.Getenv("PAYLOOM_COOKIE_DOMAIN"),
	})

	addr := os.Getenv("PAYLOOM_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE stream writes outlive normal responses
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting payloom-console %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/royale-relay/backend/internal/account"
	"github.com/royale-relay/backend/internal/auth"
	"github.com/royale-relay/backend/internal/avatar"
	"github.com/royale-relay/backend/internal/config"
	"github.com/royale-relay/backend/internal/middleware"
	"github.com/royale-relay/backend/internal/relay"
	"github.com/royale-relay/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.MongoURI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatalf("mongo ping: %v", err)
	}
	accounts := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := accounts.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}
	log.Println("MongoDB connected")

	// ── Redis (optional) ─────────────────────────────────────
	var (
		revoker     account.Revoker
		revocations middleware.RevocationChecker
	)
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		defer rdb.Close()
		rev := auth.NewRevocations(rdb)
		revoker, revocations = rev, rev
	} else {
		log.Println("REDIS_ADDR not set; logout disabled")
	}

	// ── PostgreSQL (optional) ────────────────────────────────
	var recorder relay.SessionRecorder
	if cfg.PostgresDSN != "" {
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pgPool.Close()
		pgStore := store.NewPostgresStore(pgPool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate: %v", err)
		}
		recorder = pgStore
	} else {
		log.Println("POSTGRES_DSN not set; play-session ledger disabled")
	}

	// ── MinIO (optional) ─────────────────────────────────────
	var files avatar.FileStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			log.Fatalf("minio connect: %v", err)
		}
		files = minioStore
	} else {
		log.Println("MINIO_ENDPOINT not set; avatars disabled")
	}

	// ── Handlers ─────────────────────────────────────────────
	tokens := auth.NewTokens(cfg.JWTSecret)
	requireAuth := middleware.RequireAuth(tokens, revocations)
	accountHandler := account.NewHandler(account.NewService(accounts, tokens), revoker)
	avatarHandler := avatar.NewHandler(files, accounts)
	relayHandler := relay.NewHandler(relay.NewHub(), recorder)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		accountHandler.Mount(r, requireAuth)
		avatarHandler.Mount(r, requireAuth)
		r.Get("/presence", relayHandler.ListPlayers)
	})
	r.Get("/ws", relayHandler.ServeWS)
	r.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}

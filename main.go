package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gfs "cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/cache"
	"chat-sync/internal/config"
	"chat-sync/internal/directory"
	"chat-sync/internal/handlers"
	"chat-sync/internal/identity"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/store"
	"chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/writer"
	"chat-sync/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, "chat-sync", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}
	defer closeStore()

	cacheBackend := buildCache(cfg)
	defer cacheBackend.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRouting, "chat-sync", cfg.Environment)

	manager := identity.NewManager(cfg.JWTSecret)
	dir := directory.New(st, cacheBackend)
	coordinator := writer.NewCoordinator(st)
	facade := sync.NewFacade(st, coordinator, dir)

	hub := ws.NewHub()
	defer hub.CloseAll()

	roomHandler := handlers.NewRoomHandler(facade, audit)
	friendHandler := handlers.NewFriendHandler(facade, audit)
	syncWS := ws.NewSyncWebSocketHandler(hub, facade, manager)
	messagesWS := ws.NewMessagesWebSocketHandler(hub, facade, manager)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-sync"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	authMiddleware := middleware.AuthMiddleware(manager)

	router.POST("/profile", authMiddleware, friendHandler.EnsureProfile)
	router.GET("/friends", authMiddleware, friendHandler.ListFriends)
	router.POST("/friends/requests", authMiddleware, friendHandler.SendRequest)
	router.POST("/friends/requests/:user_id/accept", authMiddleware, friendHandler.AcceptRequest)
	router.POST("/friends/requests/:user_id/reject", authMiddleware, friendHandler.RejectRequest)

	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.DeleteRoom)
	router.POST("/rooms/:room_id/invite", authMiddleware, roomHandler.InviteMember)
	router.POST("/rooms/:room_id/messages", authMiddleware, roomHandler.PostMessage)

	router.GET("/ws/sync", syncWS.Handle)
	router.GET("/ws/rooms/:room_id/messages", messagesWS.Handle)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("listening on :%s store=%s", cfg.Port, cfg.StoreBackend)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "firestore":
		client, err := gfs.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, err
		}
		return store.NewFirestoreStore(client), func() { _ = client.Close() }, nil
	case "postgres":
		pg, err := store.ConnectPG(cfg.PostgresDSN, cfg.PostgresPoll)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		log.Printf("using in-memory store")
		return store.NewMemStore(), func() {}, nil
	}
}

func buildCache(cfg config.Config) cache.Cache {
	if cfg.RedisURL == "" {
		log.Printf("redis disabled, using in-process cache")
		return cache.NewMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Printf("redis unavailable, using in-process cache: %v", err)
		return cache.NewMemoryCache()
	}
	return redisCache
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	"voicelog/internal/api"
	"voicelog/internal/auth"
	"voicelog/internal/config"
	"voicelog/internal/redis"
	"voicelog/internal/service/account"
	"voicelog/internal/service/conversation"
	"voicelog/internal/service/realtime"
	"voicelog/internal/session"
	"voicelog/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("VOICELOG_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("VOICELOG_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, user_tokens, conversations
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if redis.Enabled(cfg) {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Printf("redis not configured, token cache disabled")
	}

	authService := auth.NewService(db, rdb, cfg.Auth.JWTSecret, cfg.TokenTTL())
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	authService.StartTokenJanitor(cleanCtx, time.Duration(cfg.BasicConfig.TokenCleanInterval)*time.Minute)

	store := conversation.NewStore(storage.NewConversationRepository(db))
	proxy := realtime.NewProxy(
		realtime.NewClient(cfg.Realtime.BaseURL, cfg.RealtimeTimeout()),
		cfg.RealtimeAPIKey,
		cfg.Realtime.Model,
		cfg.Realtime.DefaultLanguage,
	)
	site := session.SiteURLs{Public: cfg.Site.PublicURL, Platform: cfg.Site.PlatformURL}
	handlers := api.NewHandler(account.NewService(db), authService, store, proxy, site)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

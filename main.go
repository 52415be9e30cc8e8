package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"BPortal/blobstore"
	"BPortal/docstore"
	"BPortal/global/config"
	"BPortal/logger"
	"BPortal/module/chat"
	"BPortal/module/chat/handler"
	"BPortal/service/mgo"
	"BPortal/service/natsx"
	"BPortal/service/storage/redis"
	"BPortal/tools/ids"
)

func main() {
	cfg := config.Default()
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgo.StartAsync(ctx, mgo.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		Username:    cfg.MongoUser,
		Password:    cfg.MongoPassword,
		MaxPoolSize: cfg.MongoPoolSize,
	})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgo.WaitReady(waitCtx); err != nil {
		logger.Errorf("mongo not ready: %v", err)
		os.Exit(1)
	}
	db := mgo.GetDB()

	if err := redis.InitRedis(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 50,
	}); err != nil {
		// Presence falls back to document reads when the cache is absent.
		logger.Warnf("redis unavailable, presence cache disabled: %v", err)
	}

	bus, err := natsx.NewClient(natsx.Config{
		Servers: cfg.NatsServers,
		Name:    "bportal",
	})
	if err != nil {
		logger.Warnf("nats unavailable, realtime fanout disabled: %v", err)
	}
	defer bus.Close()

	store := docstore.NewMongoStore(db)
	blobs, err := blobstore.NewGridFSStore(db, cfg.BaseURL)
	if err != nil {
		logger.Errorf("gridfs init: %v", err)
		os.Exit(1)
	}

	factory := func(self chat.Identity) *chat.Messenger {
		return chat.NewMessenger(ctx, store, blobs, bus, cfg, self)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.UploadLimitBytes

	handler.New(cfg, store, blobs, factory).Register(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("portal messaging listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}

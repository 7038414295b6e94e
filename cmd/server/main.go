package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cipher_chat/internal/config"
	"cipher_chat/internal/repository/message"
	redisSvc "cipher_chat/internal/service/redis"
	"cipher_chat/internal/service/server"
	"cipher_chat/internal/utils/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file applied before reading the environment")
	flag.Parse()

	cfg, err := config.LoadServer(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		log.Fatal("init store failed", zap.String("storage", cfg.StorageType), zap.Error(err))
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	chat := server.NewChatService(store, server.NewHub(), server.NewMetrics(reg), cfg.PollTimeout)
	srv := server.NewHttpServer(cfg.ListenAddr, chat, reg)

	log.Info("starting relay", zap.String("storage", cfg.StorageType), zap.Duration("poll_timeout", cfg.PollTimeout))
	if err := srv.Run(ctx); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}

func initStore(ctx context.Context, cfg *config.Server) (message.Store, func(), error) {
	switch cfg.StorageType {
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisService := redisSvc.NewRedis(rdb)
		if err := redisService.Ping(ctx); err != nil {
			redisService.Close()
			return nil, nil, err
		}
		return message.NewRedisStore(redisService), func() { redisService.Close() }, nil

	case config.StorageMongo:
		client, err := initMongo(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store := message.NewMongoStore(client.Database(cfg.MongoDB))
		if err := store.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { client.Disconnect(context.Background()) }, nil

	default:
		return message.NewMemoryStore(), func() {}, nil
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

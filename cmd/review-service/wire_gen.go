// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package main

import (
	"context"
	"docreview/cmd/review-service/internal/biz"
	"docreview/cmd/review-service/internal/data"
	"docreview/cmd/review-service/internal/infrastructure/event"
	"docreview/cmd/review-service/internal/infrastructure/vector"
	"docreview/cmd/review-service/internal/server"
	"docreview/cmd/review-service/internal/service"
	"docreview/pkg/auth"
	"docreview/pkg/cache"
	"docreview/pkg/database"
	"docreview/pkg/health"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
)

import (
	_ "go.uber.org/automaxprocs"
)

// Injectors from wire.go:

// wireApp init kratos application.
func wireApp(c *Config, logger log.Logger) (*kratos.App, func(), error) {
	httpConfig := provideHTTPConfig(c)
	config := provideDatabaseConfig(c)
	db, err := database.NewDB(config, logger)
	if err != nil {
		return nil, nil, err
	}
	cache := provideCache(c)
	dataData, cleanup, err := data.NewData(db, cache, logger)
	if err != nil {
		return nil, nil, err
	}
	collectionRepository := data.NewCollectionRepo(dataData, logger)
	documentRepository := data.NewDocumentRepo(dataData, logger)
	dispatcherConfig := provideDispatcherConfig(c)
	kafkaDispatcher := event.NewKafkaDispatcher(dispatcherConfig, logger)
	collectionUsecase := biz.NewCollectionUsecase(collectionRepository, documentRepository, kafkaDispatcher, logger)
	stageResultRepository := data.NewStageResultRepo(dataData, logger)
	trackerUsecase := biz.NewTrackerUsecase(documentRepository, stageResultRepository, logger)
	requeueCoordinator := biz.NewRequeueCoordinator(collectionRepository, documentRepository, trackerUsecase, kafkaDispatcher, logger)
	tagGroupRepository := data.NewTagGroupRepo(dataData, logger)
	client, cleanup2, err := provideMilvusClient(c)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	milvusEmbeddingStore := provideEmbeddingStore(client, c, logger)
	clusterer := biz.NewClusterer()
	tagGroupUsecase := biz.NewTagGroupUsecase(tagGroupRepository, milvusEmbeddingStore, clusterer, logger)
	statsConfig := provideStatsConfig(c)
	statsAggregator := biz.NewStatsAggregator(statsConfig)
	reviewService := service.NewReviewService(collectionUsecase, trackerUsecase, requeueCoordinator, tagGroupUsecase, statsAggregator, logger)
	jwtVerifier := provideJWTVerifier(c)
	registry := provideHealthRegistry(dataData)
	httpServer := server.NewHTTPServer(httpConfig, reviewService, jwtVerifier, cache, registry, logger)
	consumerConfig := provideConsumerConfig(c)
	resultConsumer := event.NewResultConsumer(consumerConfig, trackerUsecase, logger)
	app := newApp(logger, httpServer, resultConsumer)
	return app, func() {
		cleanup2()
		cleanup()
	}, nil
}

// wire.go:

// provideDatabaseConfig converts main Config to database.Config
func provideDatabaseConfig(c *Config) *database.Config {
	return &database.Config{
		Host:            c.Data.Database.Host,
		Port:            c.Data.Database.Port,
		User:            c.Data.Database.User,
		Password:        c.Data.Database.Password,
		Database:        c.Data.Database.Database,
		SSLMode:         c.Data.Database.SSLMode,
		MaxIdleConns:    c.Data.Database.MaxIdleConns,
		MaxOpenConns:    c.Data.Database.MaxOpenConns,
		ConnMaxLifetime: c.Data.Database.ConnMaxLifetime,
	}
}

// provideCache creates the redis cache
func provideCache(c *Config) cache.Cache {
	return cache.NewRedisCache(c.Data.Redis.Addr, c.Data.Redis.Password, c.Data.Redis.DB, &cache.Options{
		DefaultTTL: c.Data.Redis.TTL,
		KeyPrefix:  "review",
		Serializer: &cache.JSONSerializer{},
	})
}

// provideDispatcherConfig converts main Config to event.DispatcherConfig
func provideDispatcherConfig(c *Config) event.DispatcherConfig {
	return event.DispatcherConfig{
		Brokers: c.Event.Brokers,
		Topic:   c.Event.WorkTopic,
	}
}

// provideConsumerConfig converts main Config to event.ConsumerConfig
func provideConsumerConfig(c *Config) event.ConsumerConfig {
	return event.ConsumerConfig{
		Brokers: c.Event.Brokers,
		Topic:   c.Event.ResultTopic,
		GroupID: c.Event.ConsumerGroup,
	}
}

// provideStatsConfig converts main Config to biz.StatsConfig
func provideStatsConfig(c *Config) *biz.StatsConfig {
	return &biz.StatsConfig{
		AxisMax: c.Stats.AxisMax,
	}
}

// provideJWTVerifier creates the JWT verifier
func provideJWTVerifier(c *Config) *auth.JWTVerifier {
	return auth.NewJWTVerifier(c.Auth.JWTSecret)
}

// provideMilvusClient connects to the embedding store
func provideMilvusClient(c *Config) (client.Client, func(), error) {
	client2, err := client.NewClient(context.Background(), client.Config{
		Address: c.Vector.Addr,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client2.
			Close()
	}
	return client2, cleanup, nil
}

// provideEmbeddingStore creates the embedding store
func provideEmbeddingStore(client2 client.Client, c *Config, logger log.Logger) *vector.MilvusEmbeddingStore {
	return vector.NewMilvusEmbeddingStore(client2, c.Vector.Collection, logger)
}

// provideHTTPConfig converts main Config to server.HTTPConfig
func provideHTTPConfig(c *Config) *server.HTTPConfig {
	return &server.HTTPConfig{
		Addr:    c.Server.HTTP.Addr,
		Timeout: c.Server.HTTP.Timeout.String(),
		RateLimit: &server.RateLimitConfig{
			MaxRequests: c.Server.HTTP.RateLimit.MaxRequests,
			Window:      c.Server.HTTP.RateLimit.Window,
		},
	}
}

// provideHealthRegistry registers liveness checks for the data layer
func provideHealthRegistry(d *data.Data) *health.Registry {
	registry := health.NewRegistry()
	registry.Register(health.NewPingChecker("postgres", d.PingDB))
	registry.Register(health.NewPingChecker("redis", d.PingCache))
	return registry
}

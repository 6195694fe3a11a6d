//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"

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
)

// wireApp init kratos application.
func wireApp(c *Config, logger log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		// Config conversion providers
		provideDatabaseConfig,
		provideCache,
		provideDispatcherConfig,
		provideConsumerConfig,
		provideStatsConfig,
		provideJWTVerifier,
		provideHTTPConfig,
		provideHealthRegistry,

		// Infrastructure layer
		event.NewKafkaDispatcher,
		wire.Bind(new(biz.ComputeDispatcher), new(*event.KafkaDispatcher)),
		event.NewResultConsumer,
		provideMilvusClient,
		provideEmbeddingStore,
		wire.Bind(new(biz.EmbeddingStore), new(*vector.MilvusEmbeddingStore)),

		// Data layer
		database.NewDB,
		data.NewData,
		data.NewCollectionRepo,
		data.NewDocumentRepo,
		data.NewStageResultRepo,
		data.NewTagGroupRepo,

		// Business logic layer
		biz.NewCollectionUsecase,
		biz.NewTrackerUsecase,
		biz.NewRequeueCoordinator,
		biz.NewClusterer,
		biz.NewStatsAggregator,
		biz.NewTagGroupUsecase,

		// Service layer
		service.NewReviewService,

		// Server layer
		server.NewHTTPServer,

		// App
		newApp,
	))
}

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
func provideMilvusClient(c *Config) (milvusclient.Client, func(), error) {
	client, err := milvusclient.NewClient(context.Background(), milvusclient.Config{
		Address: c.Vector.Addr,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// provideEmbeddingStore creates the embedding store
func provideEmbeddingStore(client milvusclient.Client, c *Config, logger log.Logger) *vector.MilvusEmbeddingStore {
	return vector.NewMilvusEmbeddingStore(client, c.Vector.Collection, logger)
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

// Package app opens the infrastructure shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/config"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/repository/memory"
	"github.com/jwalitptl/medischedule-api/internal/repository/mongo"
	"github.com/jwalitptl/medischedule-api/pkg/messaging"
	"github.com/jwalitptl/medischedule-api/pkg/messaging/redis"
)

// OpenStore returns the configured store and a function releasing it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.Store, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:     cfg.URI,
		Name:    cfg.Name,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from mongodb")
		}
	}
	return mongo.NewStore(db), closer, nil
}

// OpenBroker connects to Redis, or returns a NopBroker when no URL is set.
func OpenBroker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (messaging.Broker, error) {
	if cfg.URL == "" {
		log.Info().Msg("No redis url configured, domain events are dropped")
		return messaging.NopBroker{}, nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, logger)
	if err != nil {
		return nil, err
	}
	return broker, nil
}

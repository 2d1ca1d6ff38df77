package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/infra/broker/kafka"
	redisstore "staybook/internal/infra/cache/redis"
	"staybook/internal/infra/config"
	"staybook/internal/infra/db/mongo"
	"staybook/internal/infra/geocode"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/storage/s3"
)

// runtime carries the selected backends plus what must run or close
// alongside the HTTP server.
type runtime struct {
	backends
	worker  *outbox.Worker
	closers []func(context.Context) error
}

func (r *runtime) close(ctx context.Context, logger *slog.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{backends: backends{checks: map[string]obs.Check{}}}

	var publisher appoutbox.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		publisher = producer
		rt.closers = append(rt.closers, func(context.Context) error { return producer.Close() })
	}

	switch cfg.StorageBackend {
	case config.BackendMongo:
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			rt.close(ctx, logger)
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		rt.checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			rt.close(ctx, logger)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		idem, err := mongo.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			rt.close(ctx, logger)
			return nil, err
		}
		box, err := outbox.NewStore(ctx, client.DB)
		if err != nil {
			rt.close(ctx, logger)
			return nil, err
		}
		rt.uow = mongo.NewFactory(client.DB)
		if cfg.GeoBackend == config.BackendMongo {
			rt.geo = mongo.NewGeoIndex(client.DB)
		}
		rt.idempotency = idem
		rt.outbox = box
		if publisher != nil {
			host, _ := os.Hostname()
			rt.worker = &outbox.Worker{
				Store:       box,
				Producer:    publisher,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      cfg.EventSource,
				ID:          host + "-" + fmt.Sprint(os.Getpid()),
				Backoff:     cfg.RetryBackoff,
				Logger:      logger,
			}
		} else {
			logger.Warn("kafka brokers not configured, outbox records will stay pending")
		}
	default:
		store := memory.NewStore()
		box := memory.NewOutbox(publisher, logger)
		box.TopicPrefix = cfg.KafkaTopicPrefix
		box.Source = cfg.EventSource
		rt.uow = memory.Factory{Store: store}
		rt.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		rt.outbox = box
	}

	if cfg.UsesRedis() {
		rdb, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			TLS:       cfg.RedisTLS,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			rt.close(ctx, logger)
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })
		rt.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		if cfg.GeoBackend == config.BackendRedis {
			rt.geo = redisstore.NewGeoIndex(rdb, cfg.RedisKeyPrefix)
		}
		if cfg.LockBackend == config.BackendRedis {
			rt.locks = redisstore.NewStayLocks(rdb, cfg.RedisKeyPrefix, cfg.LockTTL, cfg.LockWait)
		}
	}
	if rt.geo == nil {
		rt.geo = memory.NewGeoIndex()
	}
	if rt.locks == nil {
		rt.locks = memory.NewStayLocks(cfg.LockWait)
	}

	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		images, err := s3.NewImageStore(s3.Options{
			Endpoint:      cfg.S3Endpoint,
			UseSSL:        cfg.S3UseSSL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			rt.close(ctx, logger)
			return nil, err
		}
		rt.images = images
	}
	// Stays created with explicit coordinates never need the geocoder.
	if strings.TrimSpace(cfg.GeocoderURL) != "" && cfg.GeocoderAPIKey != "" {
		rt.geocoder = geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderAPIKey, cfg.GeocoderTimeout)
	}

	logger.Info("backends ready",
		"storage", cfg.StorageBackend,
		"geo", cfg.GeoBackend,
		"locks", cfg.LockBackend,
		"kafka", len(cfg.KafkaBrokers) > 0,
		"images", rt.images != nil,
		"geocoder", rt.geocoder != nil,
	)
	return rt, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/floorline/floorline/internal/blob/s3"
	"github.com/floorline/floorline/internal/cache/redis"
	"github.com/floorline/floorline/internal/chain"
	"github.com/floorline/floorline/internal/config"
	"github.com/floorline/floorline/internal/domain"
	"github.com/floorline/floorline/internal/ingest"
	"github.com/floorline/floorline/internal/oracle"
	"github.com/floorline/floorline/internal/store/postgres"
)

// Dependencies bundles everything the running service needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	OrderStore      domain.OrderStore
	TokenSetStore   domain.TokenSetStore
	SourceStore     domain.SourceStore
	CollectionStore domain.CollectionStore

	// Caches and queues
	ClaimStore      domain.ClaimStore
	CollectionCache domain.CollectionCache
	PriceCache      domain.PriceCache
	JobQueue        domain.JobQueue

	// Chain and pricing
	ChainReader *chain.Reader
	Oracle      domain.PriceOracle

	// Audit (nil when disabled)
	AuditRelay domain.AuditRelay

	// Ingestion
	Directory *ingest.MarketplaceDirectory
	Pipeline  *ingest.Pipeline
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.TokenSetStore = postgres.NewTokenSetStore(pool)
	deps.SourceStore = postgres.NewSourceStore(pool)
	deps.CollectionStore = postgres.NewCollectionStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ClaimStore = redis.NewClaimStore(redisClient)
	deps.CollectionCache = redis.NewCollectionCache(redisClient)
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.JobQueue = redis.NewJobQueue(redisClient)

	// --- Chain RPC ---
	reader, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain rpc: %w", err)
	}
	closers = append(closers, reader.Close)
	deps.ChainReader = reader

	// --- Price oracle ---
	deps.Oracle = oracle.New(oracle.Config{
		BaseURL:        cfg.Oracle.BaseURL,
		APIKey:         cfg.Oracle.APIKey,
		Timeout:        cfg.Oracle.Timeout.Duration,
		NativeCurrency: cfg.Chain.NativeCurrency,
		WrappedNative:  cfg.Chain.WrappedNative,
	}, deps.PriceCache, logger)

	// --- S3 audit relay ---
	if cfg.Audit.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Audit.Endpoint,
			Region:         cfg.Audit.Region,
			Bucket:         cfg.Audit.Bucket,
			AccessKey:      cfg.Audit.AccessKey,
			SecretKey:      cfg.Audit.SecretKey,
			UseSSL:         cfg.Audit.UseSSL,
			ForcePathStyle: cfg.Audit.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.AuditRelay = s3blob.NewRelay(s3Client)
	}

	// --- Ingestion pipeline ---
	registry := ingest.NewCollectionRegistry(deps.CollectionStore, deps.CollectionCache, logger)
	deps.Directory = ingest.NewMarketplaceDirectory(deps.SourceStore, logger)

	validator := ingest.NewValidator(ingest.ValidatorConfig{
		AllowedCurrencies: cfg.Chain.AllowedCurrencies,
		AllowedZones:      cfg.Chain.AllowedZones,
		StartTimeGrace:    cfg.Ingest.StartTimeGrace.Duration,
	}, deps.OrderStore, logger)

	resolver := ingest.NewTokenSetResolver(ingest.TokenSetResolverConfig{
		HotCollectionRank: cfg.Ingest.HotCollectionRank,
		ClaimTTL:          cfg.Ingest.ClaimTTL.Duration,
		ReconcileQueue:    cfg.Ingest.ReconcileQueue,
	}, deps.TokenSetStore, registry, deps.ClaimStore, deps.JobQueue, logger)

	normalizer := ingest.NewNormalizer(
		ingest.NormalizerConfig{LowBidFloorBps: cfg.Ingest.LowBidFloorBps},
		validator,
		resolver,
		ingest.NewRoyaltyEngine(deps.Directory),
		ingest.NewPriceConverter(deps.Oracle),
		ingest.NewSourceAttributor(deps.SourceStore, deps.Directory, cfg.Ingest.AggregatorDomain, logger),
		registry,
		logger,
	)

	seaport := ingest.NewSeaportAdapter(ingest.SeaportConfig{
		ChainID:        cfg.Chain.ChainID,
		Exchange:       cfg.Chain.SeaportExchange,
		Conduit:        cfg.Chain.SeaportConduit,
		NativeCurrency: cfg.Chain.NativeCurrency,
	}, reader)

	deps.Pipeline = ingest.NewPipeline(ingest.PipelineConfig{
		Concurrency: cfg.Ingest.Concurrency,
		JobQueue:    cfg.Ingest.JobQueue,
	}, normalizer, deps.OrderStore, deps.JobQueue, deps.AuditRelay, logger, seaport)

	return deps, cleanup, nil
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"vaultd/internal/allocation"
	allocationhandler "vaultd/internal/allocation/handler"
	allocationmetrics "vaultd/internal/allocation/metrics"
	allocationstore "vaultd/internal/allocation/store"
	"vaultd/internal/audit"
	httpapi "vaultd/internal/http"
	jwttoken "vaultd/internal/jwt_token"
	"vaultd/internal/ledger"
	ledgerhandler "vaultd/internal/ledger/handler"
	ledgermetrics "vaultd/internal/ledger/metrics"
	ledgerstore "vaultd/internal/ledger/store"
	"vaultd/internal/platform/config"
	"vaultd/internal/platform/httpserver"
	"vaultd/internal/platform/logger"
	"vaultd/internal/platform/metrics"
	platformredis "vaultd/internal/platform/redis"
	"vaultd/internal/registry"
	registryhandler "vaultd/internal/registry/handler"
	registrymetrics "vaultd/internal/registry/metrics"
	registrystore "vaultd/internal/registry/store"
	"vaultd/internal/relayer"
	"vaultd/internal/token"
	"vaultd/internal/vault"
	vaulthandler "vaultd/internal/vault/handler"
	vaultstore "vaultd/internal/vault/store"
	"vaultd/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: postgres when a DSN is configured, in-memory otherwise.
	var (
		assetStore registrystore.Store
		shareStore ledgerstore.Store
		allocStore allocationstore.Store
		roleStore  vaultstore.Store
	)
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		assetPG := registrystore.NewPostgres(pool)
		sharePG := ledgerstore.NewPostgres(pool)
		allocPG := allocationstore.NewPostgres(pool)
		rolePG := vaultstore.NewPostgres(pool)
		for _, ensure := range []func(context.Context) error{
			assetPG.EnsureSchema,
			sharePG.EnsureSchema,
			allocPG.EnsureSchema,
			rolePG.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.Error("failed to ensure schema", "error", err)
				os.Exit(1)
			}
		}
		assetStore = assetPG
		shareStore = sharePG
		allocStore = allocPG
		roleStore = rolePG
	} else {
		assetStore = registrystore.NewInMemory()
		shareStore = ledgerstore.NewInMemory()
		allocStore = allocationstore.NewInMemory()
		roleStore = vaultstore.NewInMemory()
	}

	// External token custody: remote service when configured, otherwise an
	// in-process bank for development and tests.
	var tokens token.Client
	if cfg.TokenServiceURL != "" {
		tokens = token.NewHTTPClient(cfg.TokenServiceURL, cfg.VaultAccount)
	} else {
		tokens = token.NewBank(cfg.VaultAccount)
	}

	// Event sink: Kafka when brokers are configured.
	var eventStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(ctx, cfg.Kafka)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()
		eventStore = kafkaStore
	} else {
		eventStore = audit.NewInMemoryStore()
	}
	inbox := make(chan audit.Event, 256)
	events := audit.NewAsyncPublisher(inbox)
	worker := audit.NewWorker(eventStore, inbox)

	authorityOpts := []vault.Option{
		vault.WithLogger(log),
		vault.WithEventPublisher(events),
		vault.WithRoleStore(roleStore),
	}
	if !cfg.StrategyAuthority.IsZero() {
		authorityOpts = append(authorityOpts, vault.WithStrategyAuthority(cfg.StrategyAuthority))
	}
	if cfg.RelayerURL != "" {
		authorityOpts = append(authorityOpts, vault.WithRelayerClient(relayer.NewHTTPClient(cfg.RelayerURL)))
	}
	authority, err := vault.NewAuthority(cfg.Owner, authorityOpts...)
	if err != nil {
		log.Error("invalid authority configuration", "error", err)
		os.Exit(1)
	}
	if err := authority.Restore(ctx); err != nil {
		log.Error("failed to restore role assignments", "error", err)
		os.Exit(1)
	}

	boundary := tx.NewExclusive()
	m := metrics.New()

	assets := registry.New(assetStore, tokens, authority, boundary,
		registry.WithLogger(log),
		registry.WithEventPublisher(events),
		registry.WithMetrics(registrymetrics.New()),
	)
	shares := ledger.New(shareStore, assets, allocationReader{allocStore}, tokens, authority, boundary, cfg.VaultAccount,
		ledger.WithLogger(log),
		ledger.WithEventPublisher(events),
		ledger.WithMetrics(ledgermetrics.New()),
	)

	allocationOpts := []allocation.Option{
		allocation.WithLogger(log),
		allocation.WithEventPublisher(events),
		allocation.WithMetrics(allocationmetrics.New()),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		allocationOpts = append(allocationOpts,
			allocation.WithIdempotency(allocation.NewRedisIdempotency(redisClient.Client, 24*time.Hour)))
	}
	allocations := allocation.New(allocStore, assets, tokens, authority, boundary, cfg.VaultAccount, allocationOpts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "vaultd", "vaultd")

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Metrics:   m,
		Validator: jwtService,
		Handlers: []httpapi.FeatureHandler{
			registryhandler.New(assets, log),
			ledgerhandler.New(shares, log),
			allocationhandler.New(allocations, log),
			vaulthandler.New(authority, log),
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting vaultd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("vaultd exited", "error", err)
		os.Exit(1)
	}
}

// allocationReader adapts the allocation store to the ledger's read-only
// view of outstanding allocations.
type allocationReader struct {
	store allocationstore.Store
}

func (r allocationReader) Allocated(ctx context.Context, assetID uint64) (*big.Int, error) {
	return r.store.Allocated(ctx, assetID)
}

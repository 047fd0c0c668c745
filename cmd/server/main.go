// Command server runs the IGA engine: identity ledger, lifecycle engine,
// access request workflow, and audit trail behind one HTTP surface.
//
// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal services packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/sync/errgroup"

	"governa/internal/audit"
	audithandler "governa/internal/audit/handler"
	"governa/internal/audit/relay"
	identityhandler "governa/internal/identity/handler"
	identityservice "governa/internal/identity/service"
	identitystore "governa/internal/identity/store"
	lifecyclehandler "governa/internal/lifecycle/handler"
	"governa/internal/lifecycle/policy"
	lifecycleservice "governa/internal/lifecycle/service"
	"governa/internal/platform/config"
	"governa/internal/platform/database"
	"governa/internal/platform/httpserver"
	"governa/internal/platform/kafka/producer"
	"governa/internal/platform/logger"
	"governa/internal/platform/metrics"
	"governa/internal/platform/middleware"
	"governa/internal/provision"
	provisionhandler "governa/internal/provision/handler"
	requesthandler "governa/internal/request/handler"
	requestservice "governa/internal/request/service"
	requeststore "governa/internal/request/store"
	httptransport "governa/internal/transport/http"
	"governa/migrations"
)

const version = "1.0.0"

// feedSubject is the JWT subject the HR feed authenticates with.
const feedSubject = "hr-feed"

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat)
	m := metrics.New()

	log.Info("initializing governa",
		"addr", cfg.Addr,
		"database", cfg.DatabaseURL != "",
		"kafka", cfg.KafkaBrokers != "",
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	var (
		ledgerTx      identityservice.Tx
		workflowTx    requestservice.Tx
		identityReads identitystore.Store
		requestReads  requeststore.Store
		auditStore    audit.Store
		relaySource   audit.RelaySource
	)
	if pool != nil {
		if err := applyMigrations(pool); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		db := pool.DB()
		ledgerTx = newLedgerPostgresTx(db, cfg.TxTimeout)
		workflowTx = newWorkflowPostgresTx(db, cfg.TxTimeout)
		identityReads = identitystore.NewPostgres(db)
		requestReads = requeststore.NewPostgres(db)
		pgAudit := audit.NewPostgres(db)
		auditStore = pgAudit
		relaySource = pgAudit
		defer pool.Close() //nolint:errcheck // shutdown path
		log.Info("using postgresql stores")
	} else {
		// One mutex serializes both components' transactions; see the
		// memory runner docs for why the lock is coarse.
		var mu sync.Mutex
		identities := identitystore.NewInMemoryStore()
		requests := requeststore.NewInMemoryStore()
		memAudit := audit.NewInMemoryStore()
		identityReads = identities
		requestReads = requests
		auditStore = memAudit
		relaySource = memAudit
		ledgerTx = identityservice.NewMemoryTx(&mu, identityservice.Stores{
			Identities: identities,
			Requests:   requests,
			Audit:      memAudit,
		})
		workflowTx = requestservice.NewMemoryTx(&mu, requestservice.Stores{
			Requests: requests,
			Ledger:   identityservice.Ledger{Identities: identities, Audit: memAudit},
			Audit:    memAudit,
		})
		log.Info("using in-memory stores")
	}

	policyEngine := policy.NewEngine()
	fanout := provision.NewFanout(log, provision.NewAzureAD(), provision.NewGitHub(), provision.NewSlack())

	identitySvc := identityservice.New(ledgerTx, identityReads, policyEngine, m, log)
	lifecycleSvc := lifecycleservice.New(identitySvc, fanout, m, log)
	requestSvc := requestservice.New(workflowTx, requestReads, policyEngine, fanout, m, log)
	auditSvc := audit.NewService(auditStore)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:     log,
		Metrics:    m,
		Version:    version,
		FeedAuth:   middleware.RequireFeedToken(cfg.JWTSigningKey, feedSubject, log),
		Lifecycle:  lifecyclehandler.New(lifecycleSvc, log),
		Identities: identityhandler.New(identitySvc, log),
		Requests:   requesthandler.New(requestSvc, log),
		Audit:      audithandler.New(auditSvc, log),
		Connectors: provisionhandler.New(fanout, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var auditRelay *relay.Relay
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Retries:         5,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()

		auditRelay = relay.New(relaySource, prod,
			relay.WithTopic(cfg.AuditTopic),
			relay.WithMetrics(m),
			relay.WithLogger(log),
		)
		auditRelay.Start()
		log.Info("audit relay started", "topic", cfg.AuditTopic)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if auditRelay != nil {
			auditRelay.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// applyMigrations brings the schema up to date from the embedded migration
// files.
func applyMigrations(pool *database.Pool) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	driver, err := migratepgx.WithInstance(pool.DB(), &migratepgx.Config{})
	if err != nil {
		return err
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

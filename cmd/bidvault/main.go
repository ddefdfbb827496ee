package main

import (
	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/broadcast"
	"BidVault/internal/config"
	"BidVault/internal/engine"
	"BidVault/internal/notify"
	"BidVault/internal/observability"
	"BidVault/internal/persistence"
	"BidVault/internal/query"
	"BidVault/internal/server"
	"BidVault/internal/sweeper"
	"BidVault/internal/wallet"
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: BidVault starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("FATAL: postgres open: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("FATAL: postgres ping: %v", err)
	}
	log.Println("INFO: Postgres connected")

	// --- Run SQL migrations ---
	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("FATAL: run migrations: %v", err)
	}
	log.Println("INFO: migrations applied")

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Audit channels ---
	// Wallet sends block under backpressure: no ledger entry is ever dropped.
	// Bid and auction projections share the same worker and flush.
	walletCh := make(chan wallet.Transaction, cfg.AuditChanSize)
	bidCh := make(chan bid.Bid, cfg.AuditChanSize)
	auctionCh := make(chan auction.Auction, cfg.AuditChanSize)

	// --- Broadcast sink ---
	var sink broadcast.Sink = broadcast.NopSink{}
	var publisher *broadcast.Publisher
	if cfg.BroadcastEnabled {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Fatalf("FATAL: nats connect: %v", err)
		}
		defer nc.Close()
		log.Println("INFO: NATS connected")

		js, err := jetstream.New(nc)
		if err != nil {
			log.Fatalf("FATAL: jetstream init: %v", err)
		}
		if err := broadcast.EnsureStream(ctx, js); err != nil {
			log.Fatalf("FATAL: ensure broadcast stream: %v", err)
		}

		publisher = broadcast.NewPublisher(js, cfg.BroadcastChanSize, observability.NewLogger("broadcast"))
		publisher.SetDropCounter(metrics.BroadcastDrops)
		sink = publisher
	} else {
		log.Println("INFO: broadcast disabled, events will not be published")
	}

	// --- Core state ---
	auctions := auction.NewRegistry()
	wallets := wallet.NewLedger(wallet.DefaultTiers(), walletCh, observability.NewLogger("wallet"))
	bids := bid.NewStore(bidCh)

	notifier := notify.NewLogNotifier(observability.NewLogger("notify"))

	bidEngine := engine.NewBidEngine(auctions, wallets, bids, sink, notifier, auctionCh, observability.NewLogger("bid_engine"))
	settlement := engine.NewSettlementEngine(auctions, wallets, bids, sink, auctionCh, observability.NewLogger("settlement"))

	// --- Services ---
	queryService := query.NewService(db)

	apiServer := server.New(cfg.HTTPAddr, &server.Deps{
		BidEngine:  bidEngine,
		Settlement: settlement,
		Auctions:   auctions,
		Wallets:    wallets,
		BidStore:   bids,
		Query:      queryService,
		Health:     healthChecker,
		Metrics:    metrics,
		Logger:     observability.NewLogger("http"),
	})

	// --- Expiry sweeper ---
	expirySweeper, err := sweeper.New(settlement, cfg.SweepSchedule, observability.NewLogger("sweeper"))
	if err != nil {
		log.Fatalf("FATAL: sweeper schedule %q: %v", cfg.SweepSchedule, err)
	}

	// --- Start goroutines ---
	errChan := make(chan error, 10)

	// 1. Audit worker
	auditWorker := persistence.NewAuditWorker(db, walletCh, bidCh, auctionCh,
		cfg.AuditBatchSize, cfg.AuditFlushTimeout, metrics, observability.NewLogger("audit"))
	go func() {
		errChan <- auditWorker.Run(ctx)
	}()

	// 2. Broadcast publisher
	if publisher != nil {
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	}

	// 3. HTTP API server
	go func() {
		errChan <- apiServer.Run(ctx)
	}()

	// 4. Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Printf("INFO: metrics server listening on %s/metrics", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// 5. Channel gauge sampler
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetChannelMetrics("wallet_audit", len(walletCh), cap(walletCh))
				metrics.SetChannelMetrics("bid_audit", len(bidCh), cap(bidCh))
				metrics.SetChannelMetrics("auction_audit", len(auctionCh), cap(auctionCh))
			}
		}
	}()

	// 6. Expiry sweeper (cron runner)
	expirySweeper.Start()

	healthChecker.SetReady(true)
	log.Printf("INFO: BidVault ready (http=%s, metrics=%s, sweep=%q)",
		cfg.HTTPAddr, cfg.MetricsAddr, cfg.SweepSchedule)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	// --- Graceful shutdown ---
	// The sweeper stops first so no new settlements start, then the HTTP
	// server drains, then the audit worker flushes its final batch.
	expirySweeper.Stop()
	cancel()
	time.Sleep(500 * time.Millisecond)

	log.Println("INFO: BidVault shutdown complete")
}

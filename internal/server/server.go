// Package server is the HTTP surface. Handlers call straight into the
// in-memory engines; history endpoints read the Postgres audit tables.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/engine"
	"BidVault/internal/observability"
	"BidVault/internal/query"
	"BidVault/internal/wallet"
)

// Deps carries everything the handlers need.
type Deps struct {
	BidEngine  *engine.BidEngine
	Settlement *engine.SettlementEngine
	Auctions   *auction.Registry
	Wallets    *wallet.Ledger
	BidStore   *bid.Store
	Query      *query.Service // nil disables the history endpoints
	Health     *observability.HealthChecker
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

type Server struct {
	deps   *Deps
	router *gin.Engine
	http   *http.Server
}

func New(addr string, deps *Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
	}

	s := &Server{
		deps:   deps,
		router: router,
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	if s.deps.Health != nil {
		s.router.GET("/healthz", gin.WrapF(s.deps.Health.LivenessHandler))
		s.router.GET("/readyz", gin.WrapF(s.deps.Health.ReadinessHandler))
	}

	v1 := s.router.Group("/api/v1")

	v1.GET("/auctions", s.listAuctions)
	v1.GET("/auctions/:auction_id", s.getAuction)
	v1.GET("/auctions/:auction_id/bids", s.getAuctionBids)
	v1.GET("/users/:user_id/bids", s.getUserBids)

	authed := v1.Group("")
	authed.Use(identityMiddleware())
	authed.POST("/auctions", s.createAuction)
	authed.POST("/bids", s.placeBid)
	authed.POST("/auctions/:auction_id/complete", s.completeAuction)
	authed.GET("/wallet", s.getWallet)
	authed.POST("/wallet/deposit", s.depositFunds)
	authed.GET("/wallet/transactions", s.getWalletTransactions)

	if s.deps.Query != nil {
		authed.GET("/wallet/history", s.getWalletHistory)
		authed.GET("/receivables", s.getPendingReceivables)
		v1.GET("/auctions/:auction_id/history/bids", s.getAuctionBidHistory)
		v1.GET("/users/:user_id/history/bids", s.getUserBidHistory)
		v1.GET("/auctions/:auction_id/summary", s.getAuctionSummary)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.deps.Logger.Info().Str("addr", s.http.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutCtx)
	}
}

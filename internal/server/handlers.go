package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/engine"
	"BidVault/internal/wallet"
)

const defaultListLimit = 50

// ============================================================================
// Request / response shapes
// ============================================================================

type createAuctionRequest struct {
	Title              string    `json:"title" binding:"required"`
	StartingPrice      int64     `json:"starting_price" binding:"required"`
	SecurityPercentage int64     `json:"security_percentage" binding:"required"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date" binding:"required"`
}

type placeBidRequest struct {
	AuctionID string `json:"auction_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
}

type depositRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type auctionResponse struct {
	AuctionID          uuid.UUID  `json:"auction_id"`
	Title              string     `json:"title"`
	SellerID           uuid.UUID  `json:"seller_id"`
	StartingPrice      int64      `json:"starting_price"`
	CurrentPrice       int64      `json:"current_price"`
	SecurityPercentage int64      `json:"security_percentage"`
	HighestBidder      *uuid.UUID `json:"highest_bidder,omitempty"`
	WinnerID           *uuid.UUID `json:"winner_id,omitempty"`
	FinalAmount        *int64     `json:"final_amount,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	BidCount           int64      `json:"bid_count"`
	Status             string     `json:"status"`
}

type bidResponse struct {
	BidID           uuid.UUID `json:"bid_id"`
	AuctionID       uuid.UUID `json:"auction_id"`
	BidderID        uuid.UUID `json:"bidder_id"`
	Amount          int64     `json:"amount"`
	IsTopBid        bool      `json:"is_top_bid"`
	LockedDeposit   int64     `json:"locked_deposit"`
	DepositRefunded bool      `json:"deposit_refunded"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// userBidResponse annotates a bid with its rank within its auction, one plus
// the number of strictly higher bids.
type userBidResponse struct {
	bidResponse
	Position int64 `json:"position"`
}

type walletResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	Locked    int64     `json:"locked"`
	Available int64     `json:"available"`
	Tier      string    `json:"tier"`
}

type placeBidResponse struct {
	Bid             bidResponse    `json:"bid"`
	Wallet          walletResponse `json:"wallet"`
	RequiredDeposit int64          `json:"required_deposit"`
	LockedThisBid   int64          `json:"locked_this_bid"`
	Extended        bool           `json:"deadline_extended"`
	NewDeadline     time.Time      `json:"new_deadline"`
}

type settlementResponse struct {
	AuctionID       uuid.UUID     `json:"auction_id"`
	WinnerID        *uuid.UUID    `json:"winner_id,omitempty"`
	FinalPrice      int64         `json:"final_price"`
	DepositConsumed int64         `json:"deposit_consumed"`
	PaymentCovered  int64         `json:"payment_covered"`
	PaymentPending  int64         `json:"payment_pending"`
	Refunds         []refundEntry `json:"refunds"`
}

type refundEntry struct {
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   int64     `json:"amount"`
}

func toAuctionResponse(a auction.Auction) auctionResponse {
	return auctionResponse{
		AuctionID:          a.ID,
		Title:              a.Title,
		SellerID:           a.SellerID,
		StartingPrice:      a.StartingPrice,
		CurrentPrice:       a.CurrentPrice,
		SecurityPercentage: a.SecurityPercentage,
		HighestBidder:      a.HighestBidder,
		WinnerID:           a.Winner,
		FinalAmount:        a.FinalAmount,
		StartDate:          a.StartDate,
		EndDate:            a.EndDate,
		BidCount:           a.BidCount,
		Status:             a.Status.String(),
	}
}

func toBidResponse(b bid.Bid) bidResponse {
	return bidResponse{
		BidID:           b.ID,
		AuctionID:       b.AuctionID,
		BidderID:        b.BidderID,
		Amount:          b.Amount,
		IsTopBid:        b.IsTopBid,
		LockedDeposit:   b.LockedDeposit,
		DepositRefunded: b.DepositRefunded,
		Status:          b.Status.String(),
		CreatedAt:       b.CreatedAt,
	}
}

func toWalletResponse(s wallet.Snapshot) walletResponse {
	return walletResponse{
		UserID:    s.UserID,
		Balance:   s.Balance,
		Locked:    s.Locked,
		Available: s.Available,
		Tier:      s.Tier,
	}
}

// ============================================================================
// Auction handlers
// ============================================================================

func (s *Server) createAuction(c *gin.Context) {
	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request payload"))
		return
	}

	callerID, role := callerIdentity(c)
	start := req.StartDate
	if start.IsZero() {
		start = time.Now().UTC()
	}

	a, err := s.deps.BidEngine.CreateAuction(callerID, role, engine.CreateAuctionParams{
		Title:              req.Title,
		StartingPrice:      req.StartingPrice,
		SecurityPercentage: req.SecurityPercentage,
		StartDate:          start,
		EndDate:            req.EndDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.AuctionsCreated.Inc()
		s.deps.Metrics.AuctionsActive.Inc()
	}

	c.JSON(http.StatusCreated, toAuctionResponse(*a))
}

func (s *Server) listAuctions(c *gin.Context) {
	auctions := s.deps.Auctions.List()
	out := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, toAuctionResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"auctions": out})
}

func (s *Server) getAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}

	a, err := s.deps.Auctions.Get(auctionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(a))
}

func (s *Server) getAuctionBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}
	if _, err := s.deps.Auctions.Get(auctionID); err != nil {
		writeError(c, err)
		return
	}

	bids := s.deps.BidStore.TopBids(auctionID, queryLimit(c))
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"bids": out})
}

func (s *Server) getUserBids(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid user id"))
		return
	}

	bids := s.deps.BidStore.UserBids(userID)
	out := make([]userBidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, userBidResponse{
			bidResponse: toBidResponse(b),
			Position:    s.deps.BidStore.Rank(b.AuctionID, b.Amount),
		})
	}
	c.JSON(http.StatusOK, gin.H{"bids": out})
}

// ============================================================================
// Bid placement and settlement
// ============================================================================

func (s *Server) placeBid(c *gin.Context) {
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request payload"))
		return
	}

	auctionID, err := uuid.Parse(req.AuctionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}

	callerID, role := callerIdentity(c)
	start := time.Now()
	res, err := s.deps.BidEngine.PlaceBid(callerID, role, auctionID, req.Amount)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.BidsRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		writeError(c, err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.BidsAccepted.Inc()
		s.deps.Metrics.BidApplyDuration.Observe(time.Since(start).Seconds())
		s.deps.Metrics.DepositLockedTotal.Add(float64(res.LockedThisBid))
		if res.Extended {
			s.deps.Metrics.SnipeExtensions.Inc()
		}
	}

	c.JSON(http.StatusCreated, placeBidResponse{
		Bid:             toBidResponse(res.Bid),
		Wallet:          toWalletResponse(res.Wallet),
		RequiredDeposit: res.RequiredDeposit,
		LockedThisBid:   res.LockedThisBid,
		Extended:        res.Extended,
		NewDeadline:     res.NewDeadline,
	})
}

func (s *Server) completeAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}

	callerID, role := callerIdentity(c)
	res, err := s.deps.Settlement.Settle(callerID, role, auctionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Metrics != nil {
		outcome := "won"
		if res.WinnerID == nil {
			outcome = "no_bids"
		}
		s.deps.Metrics.AuctionsSettled.WithLabelValues(outcome).Inc()
		s.deps.Metrics.AuctionsActive.Dec()
		s.deps.Metrics.PaymentPendingTotal.Add(float64(res.PaymentPending))
		for _, r := range res.Refunds {
			s.deps.Metrics.DepositRefundedTotal.Add(float64(r.Amount))
		}
	}

	out := settlementResponse{
		AuctionID:       res.AuctionID,
		WinnerID:        res.WinnerID,
		FinalPrice:      res.FinalPrice,
		DepositConsumed: res.DepositConsumed,
		PaymentCovered:  res.PaymentCovered,
		PaymentPending:  res.PaymentPending,
		Refunds:         make([]refundEntry, 0, len(res.Refunds)),
	}
	for _, r := range res.Refunds {
		out.Refunds = append(out.Refunds, refundEntry{BidderID: r.BidderID, Amount: r.Amount})
	}
	c.JSON(http.StatusOK, out)
}

// ============================================================================
// Wallet handlers
// ============================================================================

func (s *Server) getWallet(c *gin.Context) {
	callerID, _ := callerIdentity(c)
	c.JSON(http.StatusOK, toWalletResponse(s.deps.Wallets.GetSnapshot(callerID)))
}

func (s *Server) depositFunds(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request payload"))
		return
	}

	callerID, _ := callerIdentity(c)
	snap, err := s.deps.Wallets.Credit(callerID, req.Amount, "Wallet deposit")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWalletResponse(snap))
}

func (s *Server) getWalletTransactions(c *gin.Context) {
	callerID, _ := callerIdentity(c)

	var filter *wallet.TxType
	if raw := c.Query("type"); raw != "" {
		t, ok := wallet.ParseTxType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, errorBody("unknown transaction type"))
			return
		}
		filter = &t
	}

	txns := s.deps.Wallets.Transactions(callerID, filter, queryLimit(c))
	out := make([]gin.H, 0, len(txns))
	for _, t := range txns {
		entry := gin.H{
			"txn_id":        t.ID,
			"txn_type":      t.Type.String(),
			"amount":        t.Amount,
			"description":   t.Description,
			"balance_after": t.BalanceAfter,
			"locked_after":  t.LockedAfter,
			"status":        t.Status.String(),
			"created_at":    t.CreatedAt,
		}
		if t.AuctionID != nil {
			entry["auction_id"] = *t.AuctionID
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// ============================================================================
// Durable history (Postgres read model)
// ============================================================================

func (s *Server) getWalletHistory(c *gin.Context) {
	callerID, _ := callerIdentity(c)

	var filter *string
	if raw := c.Query("type"); raw != "" {
		if _, ok := wallet.ParseTxType(raw); !ok {
			c.JSON(http.StatusBadRequest, errorBody("unknown transaction type"))
			return
		}
		filter = &raw
	}

	txns, err := s.deps.Query.TransactionHistory(c.Request.Context(), callerID, filter, queryLimit(c))
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("wallet history query failed")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (s *Server) getAuctionBidHistory(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}

	bids, err := s.deps.Query.AuctionBids(c.Request.Context(), auctionID, queryLimit(c))
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("bid history query failed")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// getUserBidHistory reads a bidder's durable bid history from the audit
// tables, newest first, with optional created-at cursor pagination.
func (s *Server) getUserBidHistory(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid user id"))
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid before timestamp, expected RFC3339"))
			return
		}
		before = &ts
	}

	bids, err := s.deps.Query.UserBids(c.Request.Context(), userID, queryLimit(c), before)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("user bid history query failed")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

func (s *Server) getAuctionSummary(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid auction id"))
		return
	}

	summary, err := s.deps.Query.CompletionSummary(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getPendingReceivables lists unpaid winner payment shortfalls. Admin only.
func (s *Server) getPendingReceivables(c *gin.Context) {
	_, role := callerIdentity(c)
	if role != auction.RoleAdmin {
		c.JSON(http.StatusForbidden, errorBody("admin role required"))
		return
	}

	txns, err := s.deps.Query.PendingReceivables(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("receivables query failed")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"receivables": txns})
}

// ============================================================================
// Helpers
// ============================================================================

func queryLimit(c *gin.Context) int {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

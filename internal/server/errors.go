package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"BidVault/internal/auctionerrors"
)

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// mapErrorToHTTP maps domain errors to an HTTP status and client message.
// Conflict errors mean the client's view of the auction is stale.
func mapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"

	case errors.Is(err, auctionerrors.ErrNotBuyer),
		errors.Is(err, auctionerrors.ErrSellerOwnBid),
		errors.Is(err, auctionerrors.ErrUnauthorized),
		errors.Is(err, auctionerrors.ErrStillActive):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, auctionerrors.ErrBidTooLow),
		errors.Is(err, auctionerrors.ErrBelowStarting),
		errors.Is(err, auctionerrors.ErrAuctionEnded),
		errors.Is(err, auctionerrors.ErrAuctionNotActive),
		errors.Is(err, auctionerrors.ErrAlreadyCompleted):
		return http.StatusConflict, err.Error()

	case errors.Is(err, auctionerrors.ErrInsufficientFunds):
		return http.StatusPaymentRequired, err.Error()

	case errors.Is(err, auctionerrors.ErrInvalidAmount):
		return http.StatusBadRequest, err.Error()

	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rejectReason labels a bid rejection for metrics.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, auctionerrors.ErrBelowStarting):
		return "below_starting"
	case errors.Is(err, auctionerrors.ErrAuctionEnded):
		return "ended"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, auctionerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, auctionerrors.ErrSellerOwnBid):
		return "seller_own_bid"
	case errors.Is(err, auctionerrors.ErrNotBuyer):
		return "not_buyer"
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return "not_found"
	case errors.Is(err, auctionerrors.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}

// writeError renders a domain error. Insufficient-funds rejections carry the
// exact shortfall so the client can prompt a wallet top-up.
func writeError(c *gin.Context, err error) {
	status, msg := mapErrorToHTTP(err)

	var ife *auctionerrors.InsufficientFundsError
	if errors.As(err, &ife) {
		c.JSON(status, gin.H{
			"error":          msg,
			"required":       ife.Required,
			"already_locked": ife.AlreadyLocked,
			"shortfall":      ife.Shortfall,
		})
		return
	}

	c.JSON(status, errorBody(msg))
}

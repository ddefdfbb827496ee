package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"BidVault/internal/auction"
	"BidVault/internal/observability"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	ctxUserID = "user_id"
	ctxRole   = "role"
)

// identityMiddleware resolves the caller from the identity headers set by the
// edge proxy. Requests without a valid identity are rejected before any
// handler runs.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader(headerUserID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing or invalid "+headerUserID+" header"))
			return
		}

		role, ok := auction.ParseRole(c.GetHeader(headerUserRole))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing or invalid "+headerUserRole+" header"))
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) (uuid.UUID, auction.Role) {
	return c.MustGet(ctxUserID).(uuid.UUID), c.MustGet(ctxRole).(auction.Role)
}

func metricsMiddleware(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage"
)

// timeNow is swapped in handler tests.
var timeNow = func() time.Time { return time.Now().UTC() }

func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// writeFault translates the core error kinds into HTTP status codes. Promo
// rejections additionally carry their reason so clients can message the user.
func writeFault(c *gin.Context, err error) {
	var pe *fault.PromoError
	if errors.As(err, &pe) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  pe.Error(),
			"code":   pe.Code,
			"reason": string(pe.Reason),
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case fault.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrQuotaExceeded):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrInvalidTransition):
		status = http.StatusConflict
	case fault.IsConstraint(err):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	writeError(c, status, err)
}

// actorID reads the acting user's id from the X-User-ID header. Identity
// arrives pre-authenticated from the messaging platform gateway.
func actorID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		writeError(c, http.StatusUnauthorized, fmt.Errorf("X-User-ID header is required"))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(c, http.StatusUnauthorized, fmt.Errorf("invalid X-User-ID header"))
		return 0, false
	}
	return id, true
}

func paramInt(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func pageOf(c *gin.Context) storage.Page {
	var p storage.Page
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	return p
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t.UTC(), nil
}

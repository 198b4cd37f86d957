package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
)

const (
	defaultUsageLimit = 100
	maxUsageLimit     = 1000
)

// UsageHandler serves the usage audit trail.
type UsageHandler struct {
	db *gorm.DB
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{db: db}
}

// usageSummary aggregates the filtered rows.
type usageSummary struct {
	Requests    int64   `json:"requests"`
	TotalTokens int64   `json:"total_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// List returns usage rows with optional filters plus an aggregate summary
// over the same filter set.
func (h *UsageHandler) List(c *gin.Context) {
	filter, errFilter := h.buildFilter(c)
	if errFilter != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errFilter})
		return
	}

	limit := defaultUsageLimit
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		parsed, errParse := strconv.Atoi(limitQ)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
		if limit > maxUsageLimit {
			limit = maxUsageLimit
		}
	}

	var rows []models.Usage
	if errFind := filter().Order("requested_at DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}

	var summary usageSummary
	errAggregate := filter().
		Select("COUNT(*) AS requests, COALESCE(SUM(total_tokens), 0) AS total_tokens, COALESCE(SUM(cost_usd), 0) AS cost_usd").
		Scan(&summary).Error
	if errAggregate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate usage failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"request_id":        row.RequestID,
			"project_id":        row.ProjectID,
			"api_key_id":        row.APIKeyID,
			"provider":          row.Provider,
			"model":             row.Model,
			"endpoint":          row.Endpoint,
			"status":            row.Status,
			"prompt_tokens":     row.PromptTokens,
			"completion_tokens": row.CompletionTokens,
			"total_tokens":      row.TotalTokens,
			"cost_usd":          row.CostUSD,
			"latency_ms":        row.LatencyMs,
			"cached":            row.Cached,
			"fallback_provider": row.FallbackProvider,
			"fallback_model":    row.FallbackModel,
			"error_message":     row.ErrorMessage,
			"requested_at":      row.RequestedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"usage": out, "summary": summary})
}

// buildFilter returns a query factory applying the request's filters, so the
// row and aggregate queries stay in lockstep. The second return value is a
// non-empty validation error message on bad input.
func (h *UsageHandler) buildFilter(c *gin.Context) (func() *gorm.DB, string) {
	var (
		projectQ  = strings.TrimSpace(c.Query("project_id"))
		statusQ   = strings.TrimSpace(c.Query("status"))
		providerQ = strings.TrimSpace(c.Query("provider"))
		modelQ    = strings.TrimSpace(c.Query("model"))
		fromQ     = strings.TrimSpace(c.Query("from"))
		toQ       = strings.TrimSpace(c.Query("to"))
	)

	var from, to time.Time
	if fromQ != "" {
		parsed, errParse := time.Parse(time.RFC3339, fromQ)
		if errParse != nil {
			return nil, "invalid from timestamp"
		}
		from = parsed
	}
	if toQ != "" {
		parsed, errParse := time.Parse(time.RFC3339, toQ)
		if errParse != nil {
			return nil, "invalid to timestamp"
		}
		to = parsed
	}

	ctx := c.Request.Context()
	return func() *gorm.DB {
		q := h.db.WithContext(ctx).Model(&models.Usage{})
		if projectQ != "" {
			q = q.Where("project_id = ?", projectQ)
		}
		if statusQ != "" {
			q = q.Where("status = ?", statusQ)
		}
		if providerQ != "" {
			q = q.Where("provider = ?", providerQ)
		}
		if modelQ != "" {
			q = q.Where("model = ?", modelQ)
		}
		if !from.IsZero() {
			q = q.Where("requested_at >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("requested_at <= ?", to)
		}
		return q
	}, ""
}

package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cencori/gateway/internal/metrics"
	"github.com/cencori/gateway/internal/provider"
)

// Inbound credential headers. The dedicated header wins; a standard
// bearer token is accepted as a fallback.
const (
	HeaderAPIKey     = "CENCORI_API_KEY"
	HeaderCacheState = "X-Cencori-Cache"
)

// completionRequest is the inbound JSON body.
type completionRequest struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

// completionResponse is the outbound JSON body.
type completionResponse struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Content   string         `json:"content"`
	Cached    bool           `json:"cached"`
	Usage     map[string]int `json:"usage"`
}

// Handler exposes the pipeline over HTTP.
type Handler struct {
	pipeline *Pipeline
}

// NewHandler constructs a Handler.
func NewHandler(pipeline *Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// RegisterRoutes mounts the gateway endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/v1/chat/completions", h.ChatCompletions)
}

// ChatCompletions serves one completion request through the pipeline.
func (h *Handler) ChatCompletions(c *gin.Context) {
	startedAt := time.Now()

	rawKey := extractAPIKey(c)
	if rawKey == "" {
		writeError(c, NewError(CodeUnauthorized, "missing api key"))
		return
	}

	var body completionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeError(c, NewError(CodeBadRequest, "malformed request body"))
		return
	}

	result, errHandle := h.pipeline.Handle(c.Request.Context(), rawKey, provider.Request{
		Model:       body.Model,
		Messages:    body.Messages,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	})
	metrics.RequestDuration.Observe(time.Since(startedAt).Seconds())
	if errHandle != nil {
		metrics.RequestsTotal.WithLabelValues(errHandle.Code, "").Inc()
		writeError(c, errHandle)
		return
	}
	metrics.RequestsTotal.WithLabelValues("success", result.Response.Provider).Inc()

	responseID := result.Response.ID
	if result.Cached {
		c.Header(HeaderCacheState, "HIT")
		if !strings.HasPrefix(responseID, "cached-") {
			responseID = "cached-" + responseID
		}
	} else {
		c.Header(HeaderCacheState, "MISS")
	}

	c.JSON(http.StatusOK, completionResponse{
		ID:        responseID,
		RequestID: result.RequestID,
		Provider:  result.Response.Provider,
		Model:     result.Response.Model,
		Content:   result.Response.Content,
		Cached:    result.Cached,
		Usage: map[string]int{
			"prompt_tokens":     result.Response.PromptTokens,
			"completion_tokens": result.Response.CompletionTokens,
			"total_tokens":      result.Response.TotalTokens,
		},
	})
}

// extractAPIKey reads the gateway credential from the dedicated header or
// an Authorization bearer token.
func extractAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(HeaderAPIKey)); key != "" {
		return key
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func writeError(c *gin.Context, errResp *Error) {
	c.JSON(HTTPStatus(errResp.Code), errResp)
}
